package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"text": true, "json": true}
var validControlPolicies = map[string]bool{"any": true, "single-writer": true, "explicit-grant": true}
var validImageFormats = map[string]bool{"jpeg": true, "png": true, "webp": true, "avif": true}

// Validate checks ServerConfig for invalid values, clamping anything
// that would otherwise panic or misbehave downstream to a safe default
// and reporting every adjustment.
func (c *ServerConfig) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range, clamping to 5900", c.Port))
		c.Port = 5900
	}

	if c.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("max_connections %d is below minimum 1, clamping", c.MaxConnections))
		c.MaxConnections = 1
	}

	if c.ClientTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("client_timeout_seconds %d is below minimum 1, clamping to 30", c.ClientTimeoutSeconds))
		c.ClientTimeoutSeconds = 30
	}

	if c.KeepAliveIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("keep_alive_interval_seconds %d is below minimum 1, clamping to 15", c.KeepAliveIntervalSeconds))
		c.KeepAliveIntervalSeconds = 15
	}

	if c.ControlPolicy != "" && !validControlPolicies[strings.ToLower(c.ControlPolicy)] {
		errs = append(errs, fmt.Errorf("control_policy %q is not valid (use any, single-writer, or explicit-grant), using any", c.ControlPolicy))
		c.ControlPolicy = "any"
	}

	if c.TLSEnabled && (c.TLSCertPath == "" || c.TLSKeyPath == "") {
		errs = append(errs, fmt.Errorf("tls_enabled is true but tls_cert_path or tls_key_path is empty"))
	}

	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		errs = append(errs, fmt.Errorf("default_quality %d is out of range 1-100, clamping to 75", c.DefaultQuality))
		c.DefaultQuality = 75
	}

	if c.DefaultImageFormat != "" && !validImageFormats[strings.ToLower(c.DefaultImageFormat)] {
		errs = append(errs, fmt.Errorf("default_image_format %q is not valid, using jpeg", c.DefaultImageFormat))
		c.DefaultImageFormat = "jpeg"
	}

	if c.CaptureFpsCap < 1 {
		errs = append(errs, fmt.Errorf("capture_fps_cap %d is below minimum 1, clamping to 30", c.CaptureFpsCap))
		c.CaptureFpsCap = 30
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		log.Warn("server config validation", "error", err)
	}
	return errs
}

// Validate checks ClientConfig for invalid values, clamping unsafe
// values to defaults.
func (c *ClientConfig) Validate() []error {
	var errs []error

	if c.LastPort != 0 && (c.LastPort < 1 || c.LastPort > 65535) {
		errs = append(errs, fmt.Errorf("last_port %d is out of range, clamping to 5900", c.LastPort))
		c.LastPort = 5900
	}

	if c.ConnectTimeoutMs < 100 {
		errs = append(errs, fmt.Errorf("connect_timeout_ms %d is below minimum 100, clamping to 5000", c.ConnectTimeoutMs))
		c.ConnectTimeoutMs = 5000
	}

	if c.PollIntervalMs < 1 {
		errs = append(errs, fmt.Errorf("poll_interval_ms %d is below minimum 1, clamping to 33", c.PollIntervalMs))
		c.PollIntervalMs = 33
	}

	if c.PreferredQuality < 1 || c.PreferredQuality > 100 {
		errs = append(errs, fmt.Errorf("preferred_quality %d is out of range 1-100, clamping to 75", c.PreferredQuality))
		c.PreferredQuality = 75
	}

	if c.PreferredImageFormat != "" && !validImageFormats[strings.ToLower(c.PreferredImageFormat)] {
		errs = append(errs, fmt.Errorf("preferred_image_format %q is not valid, using jpeg", c.PreferredImageFormat))
		c.PreferredImageFormat = "jpeg"
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		log.Warn("client config validation", "error", err)
	}
	return errs
}
