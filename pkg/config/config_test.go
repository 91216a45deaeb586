package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileOverridesMissingFile(t *testing.T) {
	cfg, err := LoadFileOverrides(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DDBInterval.Duration != DefaultDDBInterval {
		t.Fatalf("expected default ddb interval, got %v", cfg.DDBInterval.Duration)
	}
	if cfg.UpstreamAddr != DefaultUpstreamAddr {
		t.Fatalf("expected default upstream addr, got %q", cfg.UpstreamAddr)
	}
}

func TestLoadFileOverridesAppliesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
ddb_url = "https://example.test/ddb.json"
ddb_interval = "1h"
upstream_addr = "example.test:1234"
upstream_callsign = "TESTCALL"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFileOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DDBURL != "https://example.test/ddb.json" {
		t.Fatalf("unexpected ddb url: %q", cfg.DDBURL)
	}
	if cfg.DDBInterval.Duration != time.Hour {
		t.Fatalf("unexpected ddb interval: %v", cfg.DDBInterval.Duration)
	}
	if cfg.UpstreamAddr != "example.test:1234" {
		t.Fatalf("unexpected upstream addr: %q", cfg.UpstreamAddr)
	}
	if cfg.UpstreamCallsign != "TESTCALL" {
		t.Fatalf("unexpected upstream callsign: %q", cfg.UpstreamCallsign)
	}
}

func TestLoadRequiresRedisURL(t *testing.T) {
	_, err := Load("", "", "", "", false, "")
	if err == nil {
		t.Fatal("expected error when REDIS_URL is empty")
	}
}

func TestLoadAppliesHostPortDefaults(t *testing.T) {
	cfg, err := Load("", "redis://localhost:6379/0", "", "", false, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr() != DefaultHost+":"+DefaultPort {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr())
	}
}

func TestLoadOverridesHostPort(t *testing.T) {
	cfg, err := Load("", "redis://localhost:6379/0", "0.0.0.0", "9090", true, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr() != "0.0.0.0:9090" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr())
	}
	if !cfg.Debug {
		t.Fatal("expected debug to be true")
	}
}
