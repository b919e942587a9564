package infrastructure

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the service's environment-derived configuration, validated once
// at startup.
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	Region    string `env:"AWS_REGION"`
	TableName string `env:"TABLE_NAME"`

	AuthProviderURL  string `env:"AUTH_PROVIDER_URL"`
	SessionTokenFile string `env:"SESSION_TOKEN_FILE"`
	AuthMode         string `env:"AUTH_MODE" envDefault:"none"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	SessionWaitTimeout time.Duration `env:"SESSION_WAIT_TIMEOUT" envDefault:"20s"`
}

func LoadConfig() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.TableName == "" || cfg.Region == "" {
		return Config{}, errors.New("missing required environment variables")
	}
	if cfg.AuthMode == "bearer" && cfg.AuthProviderURL == "" {
		return Config{}, errors.New("AUTH_PROVIDER_URL is required for bearer auth mode")
	}
	return cfg, nil
}
