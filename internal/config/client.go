package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ClientConfig is the persisted client settings tree: the viewer's
// last-used connection details and display preferences.
type ClientConfig struct {
	LastHost             string `mapstructure:"last_host" yaml:"last_host"`
	LastPort             int    `mapstructure:"last_port" yaml:"last_port"`
	LastTransport        string `mapstructure:"last_transport" yaml:"last_transport"`
	ConnectTimeoutMs     int    `mapstructure:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	PollIntervalMs       int    `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	PreferredImageFormat string `mapstructure:"preferred_image_format" yaml:"preferred_image_format"`
	PreferredQuality     int    `mapstructure:"preferred_quality" yaml:"preferred_quality"`
	LogLevel             string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat            string `mapstructure:"log_format" yaml:"log_format"`
	LogFile              string `mapstructure:"log_file" yaml:"log_file,omitempty"`
	LogMaxSizeMB         int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups        int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`
}

// DefaultClientConfig returns conservative viewer defaults with no
// remembered host.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		LastPort:             5900,
		LastTransport:        "tcp",
		ConnectTimeoutMs:     5000,
		PollIntervalMs:       33,
		PreferredImageFormat: "jpeg",
		PreferredQuality:     75,
		LogLevel:             "info",
		LogFormat:            "text",
		LogMaxSizeMB:         50,
		LogMaxBackups:        3,
	}
}

// LoadClientConfig reads path (or the platform default location when
// empty), falling back to defaults with a logged warning on a missing
// file or parse error.
func LoadClientConfig(path string) (*ClientConfig, []error) {
	cfg := DefaultClientConfig()
	v := viper.New()

	if path == "" {
		path = filepath.Join(configDir(), "client.yaml")
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("REMOTE_DESKTOP_RS")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		log.Warn("client config parse failed, using defaults", "path", path, "error", err)
		return cfg, []error{fmt.Errorf("parse %s: %w", path, err)}
	}

	if err := v.Unmarshal(cfg); err != nil {
		log.Warn("client config decode failed, using defaults", "path", path, "error", err)
		return DefaultClientConfig(), []error{fmt.Errorf("decode %s: %w", path, err)}
	}

	errs := cfg.Validate()
	return cfg, errs
}

// SaveClientConfig persists cfg to path (or the platform default
// location when empty) via temp-file-then-rename.
func SaveClientConfig(cfg *ClientConfig, path string) error {
	if path == "" {
		path = filepath.Join(configDir(), "client.yaml")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, data, 0o600)
}
