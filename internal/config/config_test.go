package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultServerConfigIsValid(t *testing.T) {
	cfg := DefaultServerConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("expected default server config to be valid, got %v", errs)
	}
}

func TestDefaultClientConfigIsValid(t *testing.T) {
	cfg := DefaultClientConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("expected default client config to be valid, got %v", errs)
	}
}

func TestServerConfigSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")

	cfg := DefaultServerConfig()
	cfg.BindAddr = "127.0.0.1"
	cfg.Port = 6000
	cfg.MaxConnections = 4
	cfg.ControlPolicy = "single-writer"

	if err := SaveServerConfig(cfg, path); err != nil {
		t.Fatalf("SaveServerConfig: %v", err)
	}

	loaded, errs := LoadServerConfig(path)
	if len(errs) != 0 {
		t.Fatalf("unexpected validation errors on round trip: %v", errs)
	}
	if loaded.BindAddr != "127.0.0.1" || loaded.Port != 6000 || loaded.MaxConnections != 4 {
		t.Fatalf("round trip lost fields: %+v", loaded)
	}
	if loaded.ControlPolicy != "single-writer" {
		t.Fatalf("expected control_policy to round trip, got %q", loaded.ControlPolicy)
	}
}

func TestLoadServerConfigMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")

	cfg, errs := LoadServerConfig(path)
	if len(errs) != 0 {
		t.Fatalf("expected no errors for a missing file, got %v", errs)
	}
	if cfg.Port != DefaultServerConfig().Port {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
}

func TestServerConfigValidateClampsOutOfRangeValues(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Port = 999999
	cfg.MaxConnections = 0
	cfg.DefaultQuality = 200
	cfg.ControlPolicy = "bogus"

	errs := cfg.Validate()
	if len(errs) == 0 {
		t.Fatal("expected validation errors for out-of-range fields")
	}
	if cfg.Port != 5900 || cfg.MaxConnections != 1 || cfg.DefaultQuality != 75 || cfg.ControlPolicy != "any" {
		t.Fatalf("expected clamped defaults, got %+v", cfg)
	}
}

func TestClientConfigSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")

	cfg := DefaultClientConfig()
	cfg.LastHost = "192.168.1.50"
	cfg.LastPort = 5901
	cfg.PreferredImageFormat = "webp"

	if err := SaveClientConfig(cfg, path); err != nil {
		t.Fatalf("SaveClientConfig: %v", err)
	}

	loaded, errs := LoadClientConfig(path)
	if len(errs) != 0 {
		t.Fatalf("unexpected validation errors on round trip: %v", errs)
	}
	if loaded.LastHost != "192.168.1.50" || loaded.LastPort != 5901 || loaded.PreferredImageFormat != "webp" {
		t.Fatalf("round trip lost fields: %+v", loaded)
	}
}
