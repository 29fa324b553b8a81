package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fastygo/taskpilot/internal/temporal"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	IdempotencyPostgres = "postgres"
	IdempotencyRedis    = "redis"
	IdempotencyMemory   = "memory"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Store       StoreConfig
	Idempotency IdempotencyConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type StoreConfig struct {
	Driver string
}

type IdempotencyConfig struct {
	Backend     string
	EnforceHash bool
	ClaimTTL    time.Duration
	Retention   time.Duration
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type BufferConfig struct {
	Path         string
	SyncInterval time.Duration
	MaxRetry     int
	BatchSize    int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return FromSource(Env())
}

// FromSource builds a Config from any keyed source.
func FromSource(src Source) (*Config, error) {
	g := getter{src}
	cfg := &Config{
		AppName:     g.String("APP_NAME", "taskpilot"),
		Environment: g.String("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         g.String("SERVER_HOST", "0.0.0.0"),
			Port:         g.String("SERVER_PORT", "8080"),
			ReadTimeout:  g.Duration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: g.Duration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  g.Duration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      g.Int("SERVER_MAX_CONN", 0),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(g.String("STORE_DRIVER", StoreDriverPostgres)),
		},
		Idempotency: IdempotencyConfig{
			Backend:     strings.ToLower(g.String("IDEMPOTENCY_BACKEND", IdempotencyPostgres)),
			EnforceHash: g.Bool("IDEMPOTENCY_ENFORCE_HASH", false),
			ClaimTTL:    g.Duration("IDEMPOTENCY_CLAIM_TTL", 30*time.Second),
			Retention:   g.Duration("IDEMPOTENCY_RETENTION", 7*24*time.Hour),
		},
		Database: DatabaseConfig{
			URL:             src.Get("DATABASE_URL"),
			Host:            g.String("DB_HOST", "localhost"),
			Port:            g.String("DB_PORT", "5432"),
			Name:            g.String("DB_NAME", "taskpilot"),
			User:            g.String("DB_USER", "taskpilot"),
			Password:        src.Get("DB_PASSWORD"),
			MaxOpenConns:    g.Int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    g.Int("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: g.Duration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         g.String("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      g.String("REDIS_URL", "redis://localhost:6379"),
			Password: src.Get("REDIS_PASSWORD"),
			DB:       g.Int("REDIS_DB", 0),
		},
		Buffer: BufferConfig{
			Path:         g.String("BOLTDB_PATH", "./data/buffer.db"),
			SyncInterval: g.Duration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			MaxRetry:     g.Int("MAX_RETRY_ATTEMPTS", 3),
			BatchSize:    g.Int("BUFFER_BATCH_SIZE", 50),
		},
		Context: ContextConfig{
			RequestTimeout:  g.Duration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: g.Duration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    g.String("LOG_LEVEL", "info"),
			Encoding: g.String("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: g.Bool("RUN_MIGRATIONS", true),
			Path:    g.String("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Idempotency.Backend {
	case IdempotencyPostgres, IdempotencyRedis, IdempotencyMemory:
	default:
		return fmt.Errorf("config: unknown IDEMPOTENCY_BACKEND %q", c.Idempotency.Backend)
	}
	if c.Idempotency.Backend == IdempotencyPostgres && c.Store.Driver != StoreDriverPostgres {
		return fmt.Errorf("config: IDEMPOTENCY_BACKEND=postgres requires STORE_DRIVER=postgres")
	}
	return nil
}

// UsesPostgres reports whether any component needs the database pool.
func (c *Config) UsesPostgres() bool {
	return c.Store.Driver == StoreDriverPostgres || c.Idempotency.Backend == IdempotencyPostgres
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}

// Source looks up a configuration value by key. Missing keys return "".
type Source interface {
	Get(key string) string
}

type envSource struct{}

func (envSource) Get(key string) string { return os.Getenv(key) }

// Env reads the process environment.
func Env() Source { return envSource{} }

// Map is a fixed Source, mostly for tests.
type Map map[string]string

func (m Map) Get(key string) string { return m[key] }

type getter struct {
	src Source
}

func (g getter) String(key, fallback string) string {
	if val := strings.TrimSpace(g.src.Get(key)); val != "" {
		return val
	}
	return fallback
}

func (g getter) Int(key string, fallback int) int {
	if val := strings.TrimSpace(g.src.Get(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func (g getter) Bool(key string, fallback bool) bool {
	if val := strings.TrimSpace(g.src.Get(key)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func (g getter) Duration(key string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(g.src.Get(key)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// ResolveScheduling reads the timezone, suggestion cooldown and day-part
// boundaries. Invalid values fall back to their defaults.
func ResolveScheduling(src Source) temporal.Settings {
	s := temporal.DefaultSettings()
	g := getter{src}

	if name := g.String("TIMEZONE", "UTC"); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			s.Location = loc
		}
	}
	if mins := g.Int("SUGGEST_COOLDOWN_MINS", 0); mins > 0 {
		s.Cooldown = time.Duration(mins) * time.Minute
	}
	s.Boundaries = temporal.NewBoundaries(
		src.Get("MORNING_START"),
		src.Get("MORNING_END"),
		src.Get("AFTERNOON_END"),
		src.Get("EVENING_END"),
	)
	return s
}

// SchedulingProvider re-reads scheduling settings from its source on every
// call so operators can change them without a restart.
type SchedulingProvider struct {
	Source Source
}

func (s SchedulingProvider) Scheduling() temporal.Settings {
	src := s.Source
	if src == nil {
		src = Env()
	}
	return ResolveScheduling(src)
}
