package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from the environment at startup.
type Config struct {
	Addr string `env:"SPLUS_ADDR" envDefault:":8080"`

	DBDriver    string `env:"SPLUS_DB_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`

	GatewaySecret      string   `env:"SPLUS_GATEWAY_SECRET"`
	GatewaySecretParam string   `env:"SPLUS_GATEWAY_SECRET_PARAM"`
	AllowedOrigins     []string `env:"SPLUS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3001,http://localhost:5173"`

	SessionBackend string        `env:"SPLUS_SESSION_BACKEND" envDefault:"memory"`
	SessionTable   string        `env:"SPLUS_SESSION_TABLE"`
	SessionTTL     time.Duration `env:"SPLUS_SESSION_TTL" envDefault:"24h"`
	SweepInterval  time.Duration `env:"SPLUS_SESSION_SWEEP_INTERVAL" envDefault:"10m"`

	LogLevel     string `env:"SPLUS_LOG_LEVEL" envDefault:"info"`
	Env          string `env:"GO_ENV"`
	OTelEndpoint string `env:"SPLUS_OTEL_ENDPOINT"`
}

const (
	sessionBackendMemory = "memory"
	sessionBackendDynamo = "dynamodb"
)

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(cfg.SessionBackend))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if !slices.Contains([]string{"postgres", "sqlite"}, c.DBDriver) {
		errs = append(errs, fmt.Errorf("SPLUS_DB_DRIVER: unsupported driver %q", c.DBDriver))
	}
	switch c.SessionBackend {
	case sessionBackendMemory:
	case sessionBackendDynamo:
		if c.SessionTable == "" {
			errs = append(errs, errors.New("SPLUS_SESSION_TABLE is required with the dynamodb session backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("SPLUS_SESSION_BACKEND: unsupported backend %q", c.SessionBackend))
	}
	if c.GatewaySecret == "" && c.GatewaySecretParam == "" {
		errs = append(errs, errors.New("one of SPLUS_GATEWAY_SECRET or SPLUS_GATEWAY_SECRET_PARAM is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SPLUS_SESSION_TTL must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SPLUS_SESSION_SWEEP_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) development() bool {
	return c.Env == "" || c.Env == "development"
}
