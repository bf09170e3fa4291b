package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvProduction is the CHAPEL_ENV value that enables strict checks.
const EnvProduction = "production"

// Config holds process configuration read once at startup.
type Config struct {
	Addr           string        `env:"CHAPEL_ADDR"             envDefault:":8080"`
	DBPath         string        `env:"CHAPEL_DB_PATH"          envDefault:"chapel.db"`
	Env            string        `env:"CHAPEL_ENV"              envDefault:"development"`
	CSRFKey        string        `env:"CHAPEL_CSRF_KEY"`
	JWTSecret      string        `env:"CHAPEL_JWT_SECRET"`
	AdminEmail     string        `env:"CHAPEL_ADMIN_EMAIL"`
	AdminPassword  string        `env:"CHAPEL_ADMIN_PASSWORD"`
	Timezone       string        `env:"CHAPEL_TIMEZONE"         envDefault:"UTC"`
	SlowQueryMs    int           `env:"CHAPEL_SLOW_QUERY_MS"    envDefault:"50"`
	SlowRequestMs  int           `env:"CHAPEL_SLOW_REQUEST_MS"  envDefault:"200"`
	RateLimitRPS   float64       `env:"CHAPEL_RATE_LIMIT_RPS"   envDefault:"10"`
	RateLimitBurst int           `env:"CHAPEL_RATE_LIMIT_BURST" envDefault:"20"`
	SessionTTL     time.Duration `env:"CHAPEL_SESSION_TTL"      envDefault:"24h"`
	LogLevel       string        `env:"CHAPEL_LOG_LEVEL"        envDefault:"info"`

	// Derived in Load.
	CSRFAuthKey []byte
	JWTKey      []byte
	Location    *time.Location
}

// Config errors
var (
	ErrMissingCSRFKey   = errors.New("CHAPEL_CSRF_KEY is required in production")
	ErrMissingJWTSecret = errors.New("CHAPEL_JWT_SECRET is required in production")
	ErrInvalidCSRFKey   = errors.New("CHAPEL_CSRF_KEY must be 64 hex characters (32 bytes)")
	ErrShortJWTSecret   = errors.New("CHAPEL_JWT_SECRET must be at least 32 bytes")
)

// Load parses the environment into a Config.
// PRE: none
// POST: CSRFAuthKey, JWTKey and Location are set; production never gets random keys
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether strict production checks apply.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SlowQuery returns the slow-query threshold.
func (c Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMs) * time.Millisecond
}

// SlowRequest returns the slow-request threshold.
func (c Config) SlowRequest() time.Duration {
	return time.Duration(c.SlowRequestMs) * time.Millisecond
}

func (c *Config) finish() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("CHAPEL_TIMEZONE: %w", err)
	}
	c.Location = loc

	switch {
	case c.CSRFKey != "":
		key, err := hex.DecodeString(c.CSRFKey)
		if err != nil || len(key) != 32 {
			return ErrInvalidCSRFKey
		}
		c.CSRFAuthKey = key
	case c.IsProduction():
		return ErrMissingCSRFKey
	default:
		if c.CSRFAuthKey, err = randomKey(); err != nil {
			return err
		}
		slog.Warn("config_event", "event", "random_csrf_key", "detail", "forms will not survive restart")
	}

	switch {
	case c.JWTSecret != "":
		if len(c.JWTSecret) < 32 {
			return ErrShortJWTSecret
		}
		c.JWTKey = []byte(c.JWTSecret)
	case c.IsProduction():
		return ErrMissingJWTSecret
	default:
		if c.JWTKey, err = randomKey(); err != nil {
			return err
		}
		slog.Warn("config_event", "event", "random_jwt_secret", "detail", "tokens will not survive restart")
	}
	return nil
}

func randomKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}
