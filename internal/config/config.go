package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store kinds.
const (
	SessionStoreMemory   = "memory"
	SessionStoreRedis    = "redis"
	SessionStorePostgres = "postgres"
)

// Config aggregates runtime configuration for the client core and the api process.
type Config struct {
	App      AppConfig
	Backend  BackendConfig
	Session  SessionConfig
	Upload   UploadConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Notify   NotificationConfig
	Mutation MutationConfig
	Logger   LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// BackendConfig describes the remote REST service.
type BackendConfig struct {
	BaseURL            string
	APIPrefix          string
	TimeoutSeconds     int
	BreakerMaxFailures int
	BreakerOpenSeconds int
}

// SessionConfig controls where the authenticated session is persisted.
type SessionConfig struct {
	Store                string
	DeviceKey            string
	CookieName           string
	ExpiryWatchIntervalS int
	TTLHours             int
}

// UploadConfig limits the file-upload passthrough.
type UploadConfig struct {
	MaxBodyBytes  int
	RatePerSecond float64
	Burst         int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NotificationConfig sizes the queue of user-facing notifications.
type NotificationConfig struct {
	QueueSize int
}

// MutationConfig toggles optional mutation behavior.
type MutationConfig struct {
	Optimistic        bool
	RefetchAfterApply bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rate, err := strconv.ParseFloat(getEnv("UPLOAD_RATE_PER_SECOND", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_RATE_PER_SECOND: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "talent-client"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
		},
		Backend: BackendConfig{
			BaseURL:            strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://localhost:4000"), "/"),
			APIPrefix:          normalizePrefix(getEnv("BACKEND_API_PREFIX", "/api")),
			TimeoutSeconds:     getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 0),
			BreakerMaxFailures: getEnvAsInt("BACKEND_BREAKER_MAX_FAILURES", 5),
			BreakerOpenSeconds: getEnvAsInt("BACKEND_BREAKER_OPEN_SECONDS", 30),
		},
		Session: SessionConfig{
			Store:                strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
			DeviceKey:            getEnv("SESSION_DEVICE_KEY", "default"),
			CookieName:           getEnv("SESSION_COOKIE_NAME", "token"),
			ExpiryWatchIntervalS: getEnvAsInt("SESSION_EXPIRY_WATCH_SECONDS", 30),
			TTLHours:             getEnvAsInt("SESSION_TTL_HOURS", 168),
		},
		Upload: UploadConfig{
			MaxBodyBytes:  getEnvAsInt("UPLOAD_MAX_BODY_BYTES", 10*1024*1024),
			RatePerSecond: rate,
			Burst:         getEnvAsInt("UPLOAD_BURST", 5),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "talent:session:"),
		},
		Notify: NotificationConfig{
			QueueSize: getEnvAsInt("NOTIFICATION_QUEUE_SIZE", 20),
		},
		Mutation: MutationConfig{
			Optimistic:        getEnvAsBool("MUTATION_OPTIMISTIC", false),
			RefetchAfterApply: getEnvAsBool("MUTATION_REFETCH_AFTER_APPLY", false),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Session.Store {
	case SessionStoreMemory, SessionStoreRedis, SessionStorePostgres:
	default:
		return fmt.Errorf("invalid SESSION_STORE %q", c.Session.Store)
	}
	if c.Session.Store == SessionStorePostgres && c.Postgres.DSN == "" {
		return errors.New("SESSION_STORE=postgres requires POSTGRES_DSN")
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid BACKEND_BASE_URL %q", c.Backend.BaseURL)
	}

	if c.Upload.MaxBodyBytes <= 0 {
		return errors.New("UPLOAD_MAX_BODY_BYTES must be positive")
	}
	if c.Upload.RatePerSecond <= 0 || c.Upload.Burst <= 0 {
		return errors.New("upload rate limit must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Endpoint joins the base URL, the API prefix and path.
func (b BackendConfig) Endpoint(path string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return b.BaseURL + b.APIPrefix + path
}

// Timeout returns zero when requests should rely on the caller's context only.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// ExpiryWatchInterval returns the period of the session expiry watcher.
func (s SessionConfig) ExpiryWatchInterval() time.Duration {
	if s.ExpiryWatchIntervalS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.ExpiryWatchIntervalS) * time.Second
}

// TTL bounds how long a persisted session is kept. Zero keeps it until logout.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLHours <= 0 {
		return 0
	}
	return time.Duration(s.TTLHours) * time.Hour
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
