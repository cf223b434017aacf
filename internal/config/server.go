package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ServerConfig is the persisted server settings tree.
type ServerConfig struct {
	BindAddr                 string `mapstructure:"bind_addr" yaml:"bind_addr"`
	Port                     int    `mapstructure:"port" yaml:"port"`
	RequireAuth              bool   `mapstructure:"require_auth" yaml:"require_auth"`
	MaxConnections           int    `mapstructure:"max_connections" yaml:"max_connections"`
	ClientTimeoutSeconds     int    `mapstructure:"client_timeout_seconds" yaml:"client_timeout_seconds"`
	KeepAliveIntervalSeconds int    `mapstructure:"keep_alive_interval_seconds" yaml:"keep_alive_interval_seconds"`
	BlockShortcuts           bool   `mapstructure:"block_shortcuts" yaml:"block_shortcuts"`
	ControlPolicy            string `mapstructure:"control_policy" yaml:"control_policy"`
	TLSEnabled               bool   `mapstructure:"tls_enabled" yaml:"tls_enabled"`
	TLSCertPath              string `mapstructure:"tls_cert_path" yaml:"tls_cert_path"`
	TLSKeyPath               string `mapstructure:"tls_key_path" yaml:"tls_key_path"`
	DefaultQuality           int    `mapstructure:"default_quality" yaml:"default_quality"`
	DefaultImageFormat       string `mapstructure:"default_image_format" yaml:"default_image_format"`
	CaptureFpsCap            int    `mapstructure:"capture_fps_cap" yaml:"capture_fps_cap"`
	ReceivedFilesDir         string `mapstructure:"received_files_dir" yaml:"received_files_dir"`
	LogLevel                 string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat                string `mapstructure:"log_format" yaml:"log_format"`
	LogFile                  string `mapstructure:"log_file" yaml:"log_file,omitempty"`
	LogMaxSizeMB             int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups            int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`

	// Credentials maps username to the password hash accepted for it.
	// Empty when RequireAuth is false or when the deployment uses a
	// single shared token via a future Authenticator wiring.
	Credentials map[string]string `mapstructure:"credentials" yaml:"credentials,omitempty"`
}

// DefaultServerConfig mirrors session.DefaultConfig's policy defaults
// plus a conservative network/log posture.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		BindAddr:                 "0.0.0.0",
		Port:                     5900,
		RequireAuth:              true,
		MaxConnections:           10,
		ClientTimeoutSeconds:     30,
		KeepAliveIntervalSeconds: 15,
		BlockShortcuts:           true,
		ControlPolicy:            "any",
		DefaultQuality:           75,
		DefaultImageFormat:       "jpeg",
		CaptureFpsCap:            30,
		ReceivedFilesDir:         filepath.Join(configDir(), "received"),
		LogLevel:                 "info",
		LogFormat:                "text",
		LogMaxSizeMB:             50,
		LogMaxBackups:            3,
	}
}

// LoadServerConfig reads path (or the platform default
// location when empty), falling back to defaults with a logged warning
// on a missing file or parse error.
func LoadServerConfig(path string) (*ServerConfig, []error) {
	cfg := DefaultServerConfig()
	v := viper.New()

	if path == "" {
		path = filepath.Join(configDir(), "server.yaml")
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
		log.Warn("server config parse failed, using defaults", "path", path, "error", err)
		return cfg, []error{fmt.Errorf("parse %s: %w", path, err)}
	}

	if err := v.Unmarshal(cfg); err != nil {
		log.Warn("server config decode failed, using defaults", "path", path, "error", err)
		return DefaultServerConfig(), []error{fmt.Errorf("decode %s: %w", path, err)}
	}

	errs := cfg.Validate()
	return cfg, errs
}

// SaveServerConfig persists cfg to path (or the platform default
// location when empty) via a temp-file-then-rename so a concurrent
// reader never observes a half-written file.
func SaveServerConfig(cfg *ServerConfig, path string) error {
	if path == "" {
		path = filepath.Join(configDir(), "server.yaml")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	// Contains no secrets today, but tls_key_path points at material
	// that does; keep the file owner-only regardless.
	return atomicWriteFile(path, data, 0o600)
}
