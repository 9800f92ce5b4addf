// Package config loads redlake configuration from an optional config file
// and the environment.
package config

import (
	"github.com/spf13/viper"

	"github.com/redlake/redlake/internal/logging"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Reddit    RedditConfig    `mapstructure:"reddit"`
	Sanitizer SanitizerConfig `mapstructure:"sanitizer"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// RedditConfig holds content source settings
type RedditConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	Enabled   bool   `mapstructure:"enabled"`
}

// SanitizerConfig holds the PII redaction backend settings. An empty URL
// disables redaction (pass-through).
type SanitizerConfig struct {
	PresidioURL string `mapstructure:"presidio_url"`
}

// StorageConfig holds staging bucket and warehouse paths
type StorageConfig struct {
	BucketRoot    string `mapstructure:"bucket_root"`
	WarehousePath string `mapstructure:"warehouse_path"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load reads configuration from config.yaml (working dir or ./config) and
// environment variables, falling back to defaults.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("reddit.base_url", "https://www.reddit.com")
	viper.SetDefault("reddit.user_agent", "redlake/0.9 (batch ingest)")
	viper.SetDefault("reddit.enabled", true)
	viper.SetDefault("sanitizer.presidio_url", "")
	viper.SetDefault("storage.bucket_root", "./data/redlake")
	viper.SetDefault("storage.warehouse_path", "./data/redlake.db")
	viper.SetDefault("logging.dir", "")

	// Environment variable bindings
	viper.AutomaticEnv()
	viper.BindEnv("reddit.user_agent", "REDDIT_USER_AGENT")
	viper.BindEnv("sanitizer.presidio_url", "PRESIDIO_URL")
	viper.BindEnv("storage.bucket_root", "REDLAKE_BUCKET_ROOT")
	viper.BindEnv("storage.warehouse_path", "REDLAKE_WAREHOUSE_PATH")
	viper.BindEnv("logging.dir", "REDLAKE_LOG_DIR")

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		logging.Info("no config file found, using defaults and environment")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
