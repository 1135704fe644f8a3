// Package common provides shared utilities for the KI7MT AI Lab aurora tools.
package common

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds common configuration for all applications.
type Config struct {
	DataDir           string           `mapstructure:"data_dir"`
	CoefficientDir    string           `mapstructure:"coefficient_dir"`
	CoefficientLayout string           `mapstructure:"coefficient_layout"` // position or coupling
	LogLevel          string           `mapstructure:"log_level"`
	OMNI              OMNIConfig       `mapstructure:"omni"`
	ClickHouse        ClickHouseConfig `mapstructure:"clickhouse"`
}

// OMNIConfig selects where solar wind samples come from.
type OMNIConfig struct {
	Source  string        `mapstructure:"source"` // file or clickhouse
	Dir     string        `mapstructure:"dir"`
	Cadence string        `mapstructure:"cadence"`
	MaxAge  time.Duration `mapstructure:"max_age"` // 0 disables age-based refetch
}

// ClickHouseConfig holds the OMNI database connection.
type ClickHouseConfig struct {
	Host     string `mapstructure:"host"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// EnvPrefix prefixes every environment override, e.g. AURORA_OMNI_SOURCE.
const EnvPrefix = "AURORA"

// Load reads configuration from an optional YAML file and the environment.
// An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.CoefficientDir == "" {
		cfg.CoefficientDir = filepath.Join(cfg.DataDir, "premodel")
	}
	if cfg.OMNI.Dir == "" {
		cfg.OMNI.Dir = filepath.Join(cfg.DataDir, "omni")
	}
	return &cfg, nil
}

// DefaultConfig returns configuration from defaults and the environment.
func DefaultConfig() *Config {
	cfg, err := Load("")
	if err != nil {
		// Unmarshal of defaults only fails on a malformed environment value.
		return &Config{DataDir: "/var/lib/ki7mt-ai-lab/aurora", CoefficientLayout: "position", LogLevel: "info"}
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "/var/lib/ki7mt-ai-lab/aurora")
	v.SetDefault("coefficient_dir", "")
	v.SetDefault("coefficient_layout", "position")
	v.SetDefault("log_level", "info")

	v.SetDefault("omni.source", "file")
	v.SetDefault("omni.dir", "")
	v.SetDefault("omni.cadence", "hourly")
	v.SetDefault("omni.max_age", "0s")

	v.SetDefault("clickhouse.host", "127.0.0.1:9000")
	v.SetDefault("clickhouse.database", "omni")
	v.SetDefault("clickhouse.user", "default")
	v.SetDefault("clickhouse.password", "")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	switch c.OMNI.Source {
	case "file", "clickhouse":
	default:
		return fmt.Errorf("omni.source must be one of: file, clickhouse")
	}
	switch c.OMNI.Cadence {
	case "hourly", "5min", "1min":
	default:
		return fmt.Errorf("omni.cadence must be one of: hourly, 5min, 1min")
	}
	if c.OMNI.MaxAge < 0 {
		return fmt.Errorf("omni.max_age must not be negative")
	}
	if c.OMNI.Source == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when omni.source is clickhouse")
	}
	if c.CoefficientDir == "" {
		return fmt.Errorf("coefficient_dir is required")
	}
	switch c.CoefficientLayout {
	case "position", "coupling":
	default:
		return fmt.Errorf("coefficient_layout must be one of: position, coupling")
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	return nil
}

