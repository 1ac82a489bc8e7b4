package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/coffee-shop/internal/auth"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (COFFEE_ prefix), flags, or YAML config files.
type Config struct {
	Addr             string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL      string        `usage:"PostgreSQL connection URL (COFFEE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	DBConnectTimeout time.Duration `default:"30s" usage:"How long to retry the initial database connection" flag:"db-connect-timeout"`
	Auth             AuthConfig
	RateLimit        RateLimitConfig
	CORS             CORSConfig
	Graceful         GracefulConfig
}

// AuthConfig describes the Auth0 tenant issuing API tokens.
type AuthConfig struct {
	Domain       string        `usage:"Auth0 tenant domain, e.g. coffee.eu.auth0.com"`
	Audience     string        `usage:"Expected token audience (API identifier)"`
	Algorithms   []string      `default:"RS256" usage:"Accepted token signing algorithms"`
	FetchTimeout time.Duration `default:"5s" usage:"Timeout of a single JWKS request"`
	KeyCacheTTL  time.Duration `default:"0s" usage:"Cache signing keys for this long; 0 fetches the JWKS on every request"`
	KeyCacheSize int           `default:"16" usage:"Maximum number of cached signing keys"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max     int           `default:"100" usage:"Max requests per window"`
	Window  time.Duration `default:"1m"  usage:"Rate limit window duration"`
	Clients int           `default:"10000" usage:"Max number of tracked clients"`
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

// AuthParams converts the loaded settings into the auth package config.
func (c *Config) AuthParams() auth.Config {
	return auth.Config{
		Domain:       c.Auth.Domain,
		Audience:     c.Auth.Audience,
		Algorithms:   c.Auth.Algorithms,
		FetchTimeout: c.Auth.FetchTimeout,
		KeyCacheTTL:  c.Auth.KeyCacheTTL,
		KeyCacheSize: c.Auth.KeyCacheSize,
	}
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:          "COFFEE",
		AllowUnknownFields: true,
		Args:               args,
		Files:              []string{"config.yaml", "/etc/coffee/config.yaml"},
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

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set COFFEE_DATABASE_URL or DATABASE_URL")
	case c.Auth.Domain == "":
		return errors.New("auth domain is required: set COFFEE_AUTH_DOMAIN")
	case c.Auth.Audience == "":
		return errors.New("auth audience is required: set COFFEE_AUTH_AUDIENCE")
	case len(c.Auth.Algorithms) == 0:
		return errors.New("at least one auth algorithm is required")
	case c.Auth.KeyCacheTTL > 0 && c.Auth.KeyCacheSize <= 0:
		return errors.Errorf("auth key cache size must be positive, got %d", c.Auth.KeyCacheSize)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's COFFEE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
