package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config holds runtime settings for the GrowthFarm client.
//
// Fields:
//   - APIBaseURL: root URL of the backend; auth calls go to /api/auth/*.
//   - StoreDriver: persistent key-value backend, sqlite, memory or redis.
//   - StorePath: SQLite database file.
//   - RedisAddr, RedisPrefix: Redis server and key namespace.
//   - StoreTimeout: upper bound for every store call made by the session.
//   - RequestTimeout: upper bound for every backend request.
//   - RecoveryScope: what a forced logout wipes, all or session.
//   - LogLevel: debug, info, warn or error.
//   - OTelEndpoint: OTLP/HTTP collector; tracing is off when empty.
type Config struct {
	APIBaseURL     string        `env:"API_BASE_URL"`
	StoreDriver    string        `env:"STORE"`
	StorePath      string        `env:"STORE_PATH"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPrefix    string        `env:"REDIS_PREFIX"`
	StoreTimeout   time.Duration `env:"STORE_TIMEOUT"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	RecoveryScope  string        `env:"RECOVERY_SCOPE"`
	LogLevel       string        `env:"LOG_LEVEL"`
	OTelEndpoint   string        `env:"OTEL_ENDPOINT"`
}

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "GROWTHFARM_"

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8000"
	c.StoreDriver = DriverSQLite
	c.StorePath = "growthfarm.db"
	c.RedisAddr = "127.0.0.1:6379"
	c.RedisPrefix = "growthfarm:kv:"
	c.StoreTimeout = 5 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.RecoveryScope = "all"
	c.LogLevel = "info"
	c.OTelEndpoint = ""
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("api base url is empty"))
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.StorePath == "" {
			errs = append(errs, errors.New("sqlite store needs a path"))
		}
	case DriverMemory:
	case DriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis store needs an address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store timeout must be positive, got %s", c.StoreTimeout))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	switch c.RecoveryScope {
	case "all", "session":
	default:
		errs = append(errs, fmt.Errorf("unknown recovery scope %q", c.RecoveryScope))
	}
	return errors.Join(errs...)
}

// Load builds a Config from defaults, then the JSON file named by -c/-config,
// then environ, then flags. Later sources take precedence.
func Load(args []string, environ map[string]string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, environ); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfig is Load over the process arguments and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:], env.ToMap(os.Environ()))
}
