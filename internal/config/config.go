package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Database DatabaseConfig
	Queue    QueueConfig
	Cache    CacheConfig
	Dispatch DispatchConfig
	Push     PushConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"aquora-hydration-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// DatabaseConfig holds MySQL connection settings for the hosted remote
// store (intake events, hydration profiles, push subscriptions).
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"aquora"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
}

// QueueConfig holds the local durable queue settings.
type QueueConfig struct {
	Path string `envconfig:"QUEUE_DB_PATH" default:"./data/queue.db"`
}

// CacheConfig holds profile cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// DispatchConfig holds the reminder dispatch settings.
type DispatchConfig struct {
	// Local hour at which each reminder intent fires.
	GoalHour   int `envconfig:"DISPATCH_GOAL_HOUR" default:"18"`
	StreakHour int `envconfig:"DISPATCH_STREAK_HOUR" default:"23"`

	// FallbackTimeZone is used for users without a stored zone.
	FallbackTimeZone string `envconfig:"DISPATCH_FALLBACK_TZ" default:"Europe/Berlin"`

	// Secret guards the trigger endpoint. Empty means the endpoint runs
	// unauthenticated (not recommended).
	Secret string `envconfig:"DISPATCH_SECRET" default:""`

	// AllowHeaderSecret additionally honors the X-Dispatch-Secret header.
	// Off by default; the bearer path is always honored.
	AllowHeaderSecret bool `envconfig:"DISPATCH_ALLOW_HEADER_SECRET" default:"false"`

	// SendTimeout bounds each individual push delivery attempt so one slow
	// subscription cannot stall the whole run.
	SendTimeout time.Duration `envconfig:"DISPATCH_SEND_TIMEOUT" default:"5s"`
}

// PushConfig holds VAPID settings for web push delivery.
type PushConfig struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY" default:""`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY" default:""`
	Subject         string `envconfig:"VAPID_SUBJECT" default:"mailto:support@aquora.app"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DSN returns the MySQL data source name.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// FallbackLocation resolves the configured fallback zone, defaulting to UTC
// when the name is unknown.
func (d *DispatchConfig) FallbackLocation() *time.Location {
	loc, err := time.LoadLocation(d.FallbackTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
