// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// App modes. Organizations, membership resolution and permission guards only apply in SaaS mode.
const (
	ModeSaaS = "saas"
	ModeOSS  = "oss"
)

// Cache backends for the membership query cache.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :3000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// OrgAPIBaseURL is the base URL of the organization service. Required in SaaS mode.
	OrgAPIBaseURL string `mapstructure:"ORG_API_BASE_URL"`
	// OrgAPIKey is sent as a bearer token to the organization service.
	OrgAPIKey string `mapstructure:"ORG_API_KEY"`
	// Mode is "saas" or "oss".
	Mode string `mapstructure:"APP_MODE"`
	// InitialOrgID preselects an organization at startup; empty means none.
	InitialOrgID string `mapstructure:"INITIAL_ORG_ID"`

	// CacheBackend is "memory" or "redis".
	CacheBackend string `mapstructure:"CACHE_BACKEND"`
	// CacheTTLRaw is the membership cache entry lifetime (e.g. "5m"). "0" keeps entries until evicted.
	CacheTTLRaw string `mapstructure:"CACHE_TTL"`
	// CacheSize bounds the in-memory cache; 0 means unbounded.
	CacheSize int `mapstructure:"CACHE_SIZE"`
	// RedisURL is the redis:// URL used when CacheBackend is redis.
	RedisURL string `mapstructure:"REDIS_URL"`

	// GuardRedirectPath is where denied settings routes redirect to.
	GuardRedirectPath string `mapstructure:"GUARD_REDIRECT_PATH"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "text" or "json".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTLPEndpoint is the OTLP gRPC collector; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("ORG_API_BASE_URL", "")
	v.SetDefault("ORG_API_KEY", "")
	v.SetDefault("APP_MODE", ModeSaaS)
	v.SetDefault("INITIAL_ORG_ID", "")
	v.SetDefault("CACHE_BACKEND", CacheMemory)
	v.SetDefault("CACHE_TTL", "0")
	v.SetDefault("CACHE_SIZE", 0)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("GUARD_REDIRECT_PATH", "/")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	switch c.Mode {
	case ModeSaaS:
		if c.OrgAPIBaseURL == "" {
			return errors.New("config: ORG_API_BASE_URL must be set when APP_MODE=saas")
		}
	case ModeOSS:
	default:
		return fmt.Errorf("config: APP_MODE must be %q or %q, got %q", ModeSaaS, ModeOSS, c.Mode)
	}
	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("config: CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CacheRedis, c.CacheBackend)
	}
	if c.CacheSize < 0 {
		return errors.New("config: CACHE_SIZE must not be negative")
	}
	if d, err := time.ParseDuration(c.CacheTTLRaw); err != nil || d < 0 {
		return fmt.Errorf("config: CACHE_TTL %q is not a valid duration", c.CacheTTLRaw)
	}
	if !strings.HasPrefix(c.GuardRedirectPath, "/") {
		return errors.New("config: GUARD_REDIRECT_PATH must be an absolute path")
	}
	return nil
}

// SaaS reports whether organizations are enabled.
func (c *Config) SaaS() bool {
	return c != nil && c.Mode == ModeSaaS
}

// CacheTTL parses CacheTTLRaw. Returns 0 (no expiry) if unset or invalid.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTLRaw)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
