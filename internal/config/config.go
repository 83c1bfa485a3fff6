package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Inference InferenceConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// InferenceConfig holds connection, timeout, and retry settings for the
// vision inference backend. An empty BaseURL disables AI extraction.
type InferenceConfig struct {
	BaseURL            string  `mapstructure:"base_url"`
	ReadTimeoutSecs    int     `mapstructure:"read_timeout_secs"`
	ConnectTimeoutSecs int     `mapstructure:"connect_timeout_secs"`
	RetryAttempts      int     `mapstructure:"retry_attempts"`
	RetryDelaySecs     float64 `mapstructure:"retry_delay_secs"`
	RetryBackoff       float64 `mapstructure:"retry_backoff"`
}

// ReadTimeout returns the read timeout as a duration. It is long on
// purpose: a cold backend may spend minutes loading its model.
func (c *InferenceConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSecs) * time.Second
}

// ConnectTimeout returns the connect timeout as a duration.
func (c *InferenceConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSecs) * time.Second
}

// RetryDelay returns the base retry delay as a duration.
func (c *InferenceConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySecs * float64(time.Second))
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the MEDFLOW_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults. The write timeout is generous because a response
	// may wait on a cold inference backend.
	v.SetDefault("server.port", ":8091")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.environment", "development")

	// Inference backend defaults
	v.SetDefault("inference.base_url", "")
	v.SetDefault("inference.read_timeout_secs", 600)
	v.SetDefault("inference.connect_timeout_secs", 30)
	v.SetDefault("inference.retry_attempts", 3)
	v.SetDefault("inference.retry_delay_secs", 5.0)
	v.SetDefault("inference.retry_backoff", 2.0)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "MEDFLOW_SERVER_PORT",
		"server.read_timeout":            "MEDFLOW_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "MEDFLOW_SERVER_WRITE_TIMEOUT",
		"server.environment":             "MEDFLOW_SERVER_ENVIRONMENT",
		"inference.base_url":             "MEDFLOW_INFERENCE_BASE_URL",
		"inference.read_timeout_secs":    "MEDFLOW_INFERENCE_READ_TIMEOUT_SECS",
		"inference.connect_timeout_secs": "MEDFLOW_INFERENCE_CONNECT_TIMEOUT_SECS",
		"inference.retry_attempts":       "MEDFLOW_INFERENCE_RETRY_ATTEMPTS",
		"inference.retry_delay_secs":     "MEDFLOW_INFERENCE_RETRY_DELAY_SECS",
		"inference.retry_backoff":        "MEDFLOW_INFERENCE_RETRY_BACKOFF",
		"log.level":                      "MEDFLOW_LOG_LEVEL",
		"log.format":                     "MEDFLOW_LOG_FORMAT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if MEDFLOW_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("MEDFLOW_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Inference = InferenceConfig{
		BaseURL:            v.GetString("inference.base_url"),
		ReadTimeoutSecs:    v.GetInt("inference.read_timeout_secs"),
		ConnectTimeoutSecs: v.GetInt("inference.connect_timeout_secs"),
		RetryAttempts:      v.GetInt("inference.retry_attempts"),
		RetryDelaySecs:     v.GetFloat64("inference.retry_delay_secs"),
		RetryBackoff:       v.GetFloat64("inference.retry_backoff"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	return cfg, nil
}
