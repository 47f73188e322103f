package config

import (
	"path/filepath"
	"strings"
	"testing"

	"otsproof/internal/digest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if len(cfg.Calendars) == 0 {
		t.Error("expected at least one default calendar")
	}
	if cfg.UpgradePollIntervalSec != 3600 {
		t.Errorf("expected 3600s poll interval, got %d", cfg.UpgradePollIntervalSec)
	}
	if !strings.Contains(cfg.DataDir, ".otsproof") {
		t.Errorf("data dir should contain .otsproof: %s", cfg.DataDir)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, ".otsproof") {
		t.Errorf("config path should contain .otsproof: %s", path)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DigestAlgorithm != digest.SHA256.String() {
		t.Errorf("expected default digest sha256, got %s", cfg.DigestAlgorithm)
	}
}

func TestLoadAndSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Calendars = []string{"https://cal.example/a"}
	cfg.WatchPaths = []string{"/tmp/watched"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Calendars) != 1 || loaded.Calendars[0] != "https://cal.example/a" {
		t.Errorf("expected saved calendar to round trip, got %v", loaded.Calendars)
	}
	if len(loaded.WatchPaths) != 1 || loaded.WatchPaths[0] != "/tmp/watched" {
		t.Errorf("expected saved watch paths to round trip, got %v", loaded.WatchPaths)
	}
}

func TestValidateRejectsUnknownDigest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DigestAlgorithm = "md5"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for unknown digest algorithm")
	}
	if !strings.Contains(err.Error(), "digest_algorithm") {
		t.Errorf("expected error to mention digest_algorithm, got %v", err)
	}
}

func TestValidateRejectsEmptyCalendars(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Calendars = nil

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for empty calendars")
	}
}
