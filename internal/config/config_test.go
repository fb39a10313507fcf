package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBaseURLPackaged(t *testing.T) {
	cfg := NewDefaultConfig()

	if got := cfg.BaseURL(); got != "http://localhost:5000" {
		t.Fatalf("unexpected base URL %q", got)
	}
}

func TestBaseURLDevHostOverride(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Mode = ModeDev
	cfg.Host = "box1"
	cfg.Port = 6000

	if got := cfg.BaseURL(); got != "http://box1:6000" {
		t.Fatalf("unexpected base URL %q", got)
	}
}

func TestBaseURLDevUsesHostname(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Mode = ModeDev

	hostname, err := os.Hostname()
	if err != nil {
		t.Skipf("no hostname: %v", err)
	}

	if got := cfg.BaseURL(); !strings.Contains(got, hostname) {
		t.Fatalf("base URL %q does not use hostname %q", got, hostname)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg := LoadConfigFile(filepath.Join(t.TempDir(), "missing.json"))

	if cfg.Port != DefaultPort {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
	if cfg.Mode != ModePackaged {
		t.Fatalf("expected packaged mode, got %q", cfg.Mode)
	}
	if cfg.HealthTimeout != 5*time.Second {
		t.Fatalf("expected 5s health timeout, got %v", cfg.HealthTimeout)
	}
	if cfg.ShutdownGrace != 3*time.Second {
		t.Fatalf("expected 3s grace, got %v", cfg.ShutdownGrace)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := NewDefaultConfig()
	cfg.Mode = ModeDev
	cfg.Host = "remote"
	cfg.Port = 5050
	cfg.Dev.Script = "other/main.py"
	cfg.Save(path)

	loaded := LoadConfigFile(path)
	if loaded.Mode != ModeDev {
		t.Fatalf("mode lost: %q", loaded.Mode)
	}
	if loaded.Host != "remote" || loaded.Port != 5050 {
		t.Fatalf("host/port lost: %q %d", loaded.Host, loaded.Port)
	}
	if loaded.Dev.Script != "other/main.py" {
		t.Fatalf("dev script lost: %q", loaded.Dev.Script)
	}

	// Timing knobs are code defaults, never persisted.
	if loaded.StartTimeout != 20*time.Second {
		t.Fatalf("start timeout changed: %v", loaded.StartTimeout)
	}
}
