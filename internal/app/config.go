package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Catalog sources.
const (
	SourceStatic   = "static"
	SourcePostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (ACADEMY_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ACADEMY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis connection URL (ACADEMY_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	TaxRate     string `default:"0.15" usage:"VAT rate applied to orders" flag:"tax-rate"`
	Storage     StorageConfig
	Catalog     CatalogConfig
	Payment     PaymentConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// StorageConfig selects where carts and orders live.
type StorageConfig struct {
	Driver string `default:"memory" usage:"Cart storage driver: memory, postgres or redis"`
	// Prefix namespaces Redis keys.
	Prefix string `default:"academy:" usage:"Redis key prefix"`
	// Channel is the Redis pub/sub channel of the cart change feed.
	Channel string `default:"academy:cart-changes" usage:"Redis cart change channel"`
}

// CatalogConfig selects the course source.
type CatalogConfig struct {
	Source string `default:"static" usage:"Course source: static (embedded seed) or postgres"`
}

// PaymentConfig controls the payment simulator.
type PaymentConfig struct {
	Delay       time.Duration `default:"2s" usage:"Simulated processing delay"`
	SuccessRate float64       `default:"0.9" usage:"Probability that an attempt succeeds"`
	Seed        uint64        `default:"0" usage:"Outcome seed, 0 for random"`
}

// SessionConfig controls session eviction.
type SessionConfig struct {
	TTL      time.Duration `default:"30m" usage:"Idle time before a session is evicted"`
	Interval time.Duration `default:"1m" usage:"Eviction interval"`
	Max      int           `default:"100000" usage:"Live session count reported unhealthy"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// Backend is memory (sliding window per instance) or redis (token bucket
	// shared by instances).
	Backend string `default:"memory" usage:"Rate limiter backend: memory or redis"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ACADEMY",
		Files:     []string{"config.yaml", "/etc/academy/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every selected backend has its connection URL and
// that rates are in range.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for postgres storage: set ACADEMY_DATABASE_URL or DATABASE_URL")
		}
	case DriverRedis:
		if c.RedisURL == "" {
			return errors.New("redis URL is required for redis storage: set ACADEMY_REDIS_URL or REDIS_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Catalog.Source {
	case SourceStatic:
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres catalog")
		}
	default:
		return errors.Errorf("unknown catalog source %q", c.Catalog.Source)
	}

	switch c.RateLimit.Backend {
	case DriverMemory:
	case DriverRedis:
		if c.RedisURL == "" {
			return errors.New("redis URL is required for the redis rate limiter")
		}
	default:
		return errors.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}

	if _, err := c.Tax(); err != nil {
		return err
	}
	if c.Payment.SuccessRate < 0 || c.Payment.SuccessRate > 1 {
		return errors.Errorf("payment success rate %v is outside [0, 1]", c.Payment.SuccessRate)
	}
	return nil
}

// Tax parses TaxRate.
func (c *Config) Tax() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, errors.Errorf("tax rate %s is outside [0, 1]", rate)
	}
	return rate, nil
}

// UsesPostgres reports whether any component needs the database pool.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Driver == DriverPostgres || c.Catalog.Source == SourcePostgres
}

// UsesRedis reports whether any component needs the Redis client.
func (c *Config) UsesRedis() bool {
	return c.Storage.Driver == DriverRedis || c.RateLimit.Backend == DriverRedis
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL, REDIS_URL and PORT
// to the application's ACADEMY_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
