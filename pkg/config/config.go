package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CLAIMS_REPOSITORY_SOURCE.
const EnvPrefix = "CLAIMS"

// Config holds the server configuration.
type Config struct {
	HTTPListen      string           `mapstructure:"http_listen"`
	GRPCListen      string           `mapstructure:"grpc_listen"`
	MaxRequestBytes int64            `mapstructure:"max_request_bytes"`
	ShutdownTimeout time.Duration    `mapstructure:"shutdown_timeout"`
	Repository      RepositoryConfig `mapstructure:"repository"`

	// Models names the models to serve; empty serves every model in the repository.
	Models []string `mapstructure:"models"`
}

// RepositoryConfig locates the model configs: gs://bucket[/prefix], http(s)://model-store or a directory.
type RepositoryConfig struct {
	Source              string        `mapstructure:"source"`
	CacheDir            string        `mapstructure:"cache_dir"`
	MaxDownloadAttempts int           `mapstructure:"max_download_attempts"`
	RetryInterval       time.Duration `mapstructure:"retry_interval"`
}

// LoadConfig reads the YAML config file, if configFile is set, and applies
// defaults and CLAIMS_* environment overrides.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("http_listen", ":8080")
	v.SetDefault("grpc_listen", ":8081")
	v.SetDefault("max_request_bytes", 8<<20)
	v.SetDefault("shutdown_timeout", "5s")
	v.SetDefault("repository.source", "")
	v.SetDefault("repository.cache_dir", "")
	v.SetDefault("repository.max_download_attempts", 5)
	v.SetDefault("repository.retry_interval", "5s")
	v.SetDefault("models", []string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Repository.Source == "" {
		return nil, errors.New("repository.source is required")
	}
	if cfg.HTTPListen == "" && cfg.GRPCListen == "" {
		return nil, errors.New("at least one of http_listen and grpc_listen is required")
	}
	return &cfg, nil
}
