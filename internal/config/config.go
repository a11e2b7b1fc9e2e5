// Package config reads server settings from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const Prefix = "RAFFLE_"

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HistoryDriver string `env:"HISTORY_DRIVER" envDefault:"memory"`
	HistoryDSN    string `env:"HISTORY_DSN"`

	FlickerInterval time.Duration `env:"FLICKER_INTERVAL" envDefault:"75ms"`
	RevealDelay     time.Duration `env:"REVEAL_DELAY" envDefault:"3s"`
	SettleDelay     time.Duration `env:"SETTLE_DELAY" envDefault:"2s"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	MaxRows        int   `env:"MAX_ROWS" envDefault:"100000"`

	// AllowedOrigins are host patterns such as "localhost:*".
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (c Config) Development() bool { return c.Env == "development" }

// LoadEnvFiles loads .env.<env>.local, .env.<env> and .env, in that
// order. Earlier files win and real environment variables win over all.
// Missing files are ignored.
func LoadEnvFiles() {
	name := os.Getenv(Prefix + "ENV")
	if name == "" {
		name = "development"
	}

	_ = godotenv.Load(".env." + name + ".local")
	_ = godotenv.Load(".env." + name)
	_ = godotenv.Load()
}

// Load parses the environment into a validated Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.HistoryDriver {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("%sHISTORY_DRIVER: unknown driver %q", Prefix, c.HistoryDriver))
	}
	if c.HistoryDriver != "memory" && c.HistoryDSN == "" {
		errs = append(errs, fmt.Errorf("%sHISTORY_DSN is required for %s", Prefix, c.HistoryDriver))
	}
	if c.FlickerInterval < 0 || c.RevealDelay < 0 || c.SettleDelay < 0 {
		errs = append(errs, errors.New("reveal timings must not be negative"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("%sMAX_UPLOAD_BYTES must be positive", Prefix))
	}
	if c.MaxRows <= 0 {
		errs = append(errs, fmt.Errorf("%sMAX_ROWS must be positive", Prefix))
	}
	return errors.Join(errs...)
}
