// Package config loads sessionkit configuration from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	API   APIConfig   `env:",prefix=API_"`
	Token TokenConfig `env:",prefix=TOKEN_"`
	Agent AgentConfig `env:",prefix=AGENT_"`
	Redis RedisConfig `env:",prefix=REDIS_"`
	Env   string      `env:"ENV,default=development"`
}

type APIConfig struct {
	BaseURL        string        `env:"BASE_URL,default=http://localhost:7001/api/v1"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=15s"`
	RetryMax       int           `env:"RETRY_MAX,default=2"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY,default=500ms"`
}

type TokenConfig struct {
	// Backend selects where the token persists: file, memory, or redis.
	Backend        string        `env:"BACKEND,default=file"`
	StorePath      string        `env:"STORE_PATH"` // empty: user config dir
	ClockSkew      time.Duration `env:"CLOCK_SKEW,default=10s"`
	RefreshLeeway  time.Duration `env:"REFRESH_LEEWAY,default=5m"`
	RefreshTimeout time.Duration `env:"REFRESH_TIMEOUT,default=30s"`
}

type AgentConfig struct {
	Host         string        `env:"HOST,default=127.0.0.1"`
	Port         string        `env:"PORT,default=7010"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
	Key      string `env:"KEY,default=workoutbuddy:session:token"`
}

// Address returns the Redis connection address.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	switch config.Token.Backend {
	case "file", "memory", "redis":
	default:
		return nil, fmt.Errorf("invalid TOKEN_BACKEND %q (expected file, memory, or redis)", config.Token.Backend)
	}

	return &config, nil
}
