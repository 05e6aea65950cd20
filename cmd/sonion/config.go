package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the demo server settings, read from the environment.
type Config struct {
	Addr           string        `env:"SONION_ADDR" envDefault:":3000"`
	AdminAddr      string        `env:"SONION_ADMIN_ADDR"`
	StaticRoot     string        `env:"SONION_STATIC_ROOT" envDefault:"./public"`
	LogLevel       string        `env:"SONION_LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"SONION_REQUEST_TIMEOUT"`
	ShutdownGrace  time.Duration `env:"SONION_SHUTDOWN_GRACE" envDefault:"10s"`
	CORSOrigin     string        `env:"SONION_CORS_ORIGIN"`
	RateLimit      int           `env:"SONION_RATE_LIMIT"`
	RateWindow     time.Duration `env:"SONION_RATE_WINDOW" envDefault:"1m"`
}

// LoadConfig reads .env files when present and parses the environment into a Config.
func LoadConfig(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Addr == "" {
		return errors.New("SONION_ADDR must not be empty")
	}
	if c.RequestTimeout < 0 {
		return errors.New("SONION_REQUEST_TIMEOUT must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("SONION_RATE_LIMIT must not be negative")
	}
	return nil
}
