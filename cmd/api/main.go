package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aquora-hydration-api/internal/cache"
	"aquora-hydration-api/internal/config"
	"aquora-hydration-api/internal/handler"
	"aquora-hydration-api/internal/middleware"
	"aquora-hydration-api/internal/notify"
	"aquora-hydration-api/internal/push"
	"aquora-hydration-api/internal/repository"
	"aquora-hydration-api/internal/router"
	"aquora-hydration-api/internal/service"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Aquora Hydration API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize local durable queue (SQLite)
	queueRepo, err := repository.NewSQLiteQueueRepository(cfg.Queue.Path)
	if err != nil {
		log.Fatalf("Failed to initialize local queue: %v", err)
	}
	defer queueRepo.Close()

	// Initialize MySQL connection for the hosted remote store (optional:
	// the engine starts degraded/offline when it is unreachable)
	var (
		mysqlDB     *sql.DB
		intakeStore repository.IntakeStore
		profileRepo repository.ProfileRepository
		subRepo     repository.SubscriptionRepository
	)

	mysqlDB, err = sql.Open("mysql", cfg.Database.DSN())
	if err != nil {
		log.Printf("Warning: MySQL connection failed: %v", err)
	} else {
		mysqlDB.SetMaxOpenConns(10)
		mysqlDB.SetMaxIdleConns(5)
		mysqlDB.SetConnMaxLifetime(5 * time.Minute)

		if err := mysqlDB.Ping(); err != nil {
			log.Printf("Warning: MySQL ping failed, starting offline: %v", err)
			mysqlDB.Close()
			mysqlDB = nil
		} else {
			intakeStore = repository.NewSchemaAdapter(repository.NewMySQLEntryStore(mysqlDB))
			profileRepo = repository.NewMySQLProfileRepository(mysqlDB)
			subRepo = repository.NewMySQLSubscriptionRepository(mysqlDB)
			log.Println("MySQL repositories initialized")
		}
	}
	if mysqlDB != nil {
		defer mysqlDB.Close()
	}

	// Initialize profile cache
	var profileCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis cache unavailable, falling back to memory: %v", err)
			profileCache = cache.NewMemoryCache()
		} else {
			defer redisCache.Close()
			profileCache = redisCache
		}
	default:
		profileCache = cache.NewMemoryCache()
	}

	// Event bus for connectivity and change signals
	bus := notify.NewBus()

	// Initialize sync reconciler
	reconciler := service.NewReconciler(service.ReconcilerConfig{
		Store:    intakeStore,
		Queue:    queueRepo,
		Profiles: profileRepo,
		Cache:    profileCache,
		Bus:      bus,
		Fallback: cfg.Dispatch.FallbackLocation(),
		CacheTTL: cfg.Cache.TTL,
	})

	// Initialize reminder dispatcher
	var dispatcher *service.Dispatcher
	if intakeStore != nil {
		sender := push.NewWebPushSender(cfg.Push.Subject, cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
		dispatcher = service.NewDispatcher(service.DispatcherConfig{
			Subscriptions: subRepo,
			Profiles:      profileRepo,
			Store:         intakeStore,
			Sender:        sender,
			GoalHour:      cfg.Dispatch.GoalHour,
			StreakHour:    cfg.Dispatch.StreakHour,
			Fallback:      cfg.Dispatch.FallbackLocation(),
			SendTimeout:   cfg.Dispatch.SendTimeout,
		})
	}
	if dispatcher == nil {
		log.Println("Warning: dispatcher disabled (remote store unavailable)")
	}
	if cfg.Dispatch.Secret == "" {
		log.Println("Warning: DISPATCH_SECRET is empty, trigger endpoint runs unauthenticated")
	}

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version)
	hydrationHandler := handler.NewHydrationHandler(reconciler)

	var dispatchHandler *handler.DispatchHandler
	if dispatcher != nil {
		dispatchHandler = handler.NewDispatchHandler(dispatcher)
	}

	// Create router
	r := router.New(router.Config{
		Handler:          healthHandler,
		HydrationHandler: hydrationHandler,
		DispatchHandler:  dispatchHandler,
		AuthMiddleware:   middleware.NewAPIKeyMiddleware(nil),
		DispatchAuth:     middleware.DispatchAuth(cfg.Dispatch.Secret, cfg.Dispatch.AllowHeaderSecret),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Drain any leftover queue from a previous run once we're up
	if intakeStore != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			reconciler.FlushAll(ctx)
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
