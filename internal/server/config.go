package server

import (
	"net"
	"strconv"
	"time"

	"github.com/ThatCatDev/tanrenai/estimator/internal/config"
)

// Config holds the model server configuration.
type Config struct {
	Host                    string `env:"SAGEMAKER_BIND_TO_HOST" envDefault:"0.0.0.0"`
	Port                    int    `env:"SAGEMAKER_BIND_TO_PORT" envDefault:"8080"`
	ModelDir                string `env:"SM_MODEL_DIR"`
	CodeDir                 string `env:"SAGEMAKER_SUBMIT_DIRECTORY"`
	TimeoutSeconds          int    `env:"SAGEMAKER_MODEL_SERVER_TIMEOUT" envDefault:"60"`
	MaxPayloadMB            int    `env:"SAGEMAKER_MAX_PAYLOAD_IN_MB" envDefault:"6"`
	MaxConcurrentTransforms int    `env:"SAGEMAKER_MAX_CONCURRENT_TRANSFORMS" envDefault:"1"`
	StartupTimeoutSeconds   int    `env:"SAGEMAKER_HANDLER_STARTUP_TIMEOUT" envDefault:"120"`
}

// LoadConfig reads the server configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.ParseEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = config.ModelDir()
	}
	if cfg.CodeDir == "" {
		cfg.CodeDir = config.DefaultCodeDir
	}
	return cfg, nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Timeout is the per-invocation deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StartupTimeout bounds how long the handler may take to become healthy.
func (c *Config) StartupTimeout() time.Duration {
	return time.Duration(c.StartupTimeoutSeconds) * time.Second
}

// MaxPayloadBytes is the largest accepted invocation body.
func (c *Config) MaxPayloadBytes() int64 {
	return int64(c.MaxPayloadMB) * 1024 * 1024
}
