package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, loaded from environment
// variables. Defaults are suitable for local development except for
// secrets, which have no defaults on purpose.
type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8080"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"30m"`
	SessionSweep   time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`

	ResetSnapshotPath string `env:"RESET_SNAPSHOT_PATH" envDefault:"reset_tokens.json"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort string `env:"SMTP_PORT" envDefault:"587"`
	SMTPFrom string `env:"SMTP_FROM"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}
