package router

import (
	"net/http"

	"aquora-hydration-api/internal/handler"
	"aquora-hydration-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	HydrationHandler *handler.HydrationHandler
	DispatchHandler  *handler.DispatchHandler
	AuthMiddleware   func(http.Handler) http.Handler
	DispatchAuth     func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", "X-Dispatch-Secret"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED client routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			if cfg.HydrationHandler != nil {
				r.Route("/users/{user_id}", func(r chi.Router) {
					r.Get("/hydration", cfg.HydrationHandler.GetHydration)
					r.Post("/intake", cfg.HydrationHandler.AddIntake)
					r.Put("/intake/queued/{local_id}", cfg.HydrationHandler.UpdateQueuedIntake)
					r.Put("/goal", cfg.HydrationHandler.SetGoal)
					r.Post("/sync/flush", cfg.HydrationHandler.FlushQueue)
				})
			}
		})
	})

	// DISPATCH trigger (shared-secret auth, separate from the client keys)
	if cfg.DispatchHandler != nil {
		r.Group(func(r chi.Router) {
			if cfg.DispatchAuth != nil {
				r.Use(cfg.DispatchAuth)
			}
			r.Get("/api/v1/notifications/dispatch", cfg.DispatchHandler.Run)
			r.Post("/api/v1/notifications/dispatch", cfg.DispatchHandler.Run)
		})
	}

	return r
}
