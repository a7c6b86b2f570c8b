package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Env               string        `env:"APP_ENV,default=development"`
	LogLevel          string        `env:"LOG_LEVEL"`
	HTTPPort          int           `env:"HTTP_PORT,default=8080"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT,default=5s"`

	DataBackend string `env:"DATA_BACKEND,default=memory"`

	DatabaseDriver    string        `env:"DATABASE_DRIVER,default=postgres"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=1h"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME,default=30m"`
	MigrationsDir     string        `env:"MIGRATIONS_DIR,default=internal/database/migrations"`
	AutoMigrate       bool          `env:"AUTO_MIGRATE,default=true"`

	RedisURL       string        `env:"REDIS_URL"`
	ReportCacheTTL time.Duration `env:"REPORT_CACHE_TTL,default=1m"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY,default=24h"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=40"`

	ItemsPerPage int `env:"ITEMS_PER_PAGE,default=20"`
	MaxPageSize  int `env:"MAX_PAGE_SIZE,default=100"`

	MaterialMargin       float64 `env:"MATERIAL_MARGIN,default=0.05"`
	LowStockScanSchedule string  `env:"LOW_STOCK_SCAN_SCHEDULE,default=@every 15m"`
}

const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvStaging     = "staging"
	EnvProduction  = "production"

	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	minProductionSecretLen = 32
)

// Load reads an optional env file, then decodes and validates configuration
// values from the environment. Variables already present in the process
// environment take precedence over the file.
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that tags cannot express.
func (c Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvTesting, EnvStaging:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
	case EnvProduction:
		if len(c.JWTSecret) < minProductionSecretLen {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minProductionSecretLen)
		}
	default:
		return fmt.Errorf("unknown APP_ENV value: %s", c.Env)
	}

	switch c.DataBackend {
	case BackendMemory:
		// no-op
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATA_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown DATA_BACKEND value: %s", c.DataBackend)
	}

	if c.MaterialMargin < 0 || c.MaterialMargin >= 1 {
		return fmt.Errorf("MATERIAL_MARGIN must be in [0,1), got %v", c.MaterialMargin)
	}
	if c.ItemsPerPage <= 0 || c.MaxPageSize < c.ItemsPerPage {
		return fmt.Errorf("ITEMS_PER_PAGE must be positive and not exceed MAX_PAGE_SIZE")
	}
	// RATE_LIMIT_RPS=0 disables the limiter; otherwise burst must admit a request.
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when RATE_LIMIT_RPS is set, got %d", c.RateLimitBurst)
	}
	return nil
}

// IsProduction reports whether the production profile is active.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}
