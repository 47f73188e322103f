// Package config handles configuration loading and validation for the
// otsproof client: calendar servers, the default digest algorithm, the
// data directory, watched paths, and the upgrade poll interval.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"otsproof/internal/digest"
)

// Config holds the client configuration.
type Config struct {
	// Calendars is the set of calendar server base URLs a stamp is
	// submitted to. An upgrade polls the URI stored in each Pending leaf,
	// not this list.
	Calendars []string `toml:"calendars"`

	// DigestAlgorithm names a digest.Type, resolved by DefaultDigestType.
	// The stamping flow hashes documents with SHA-256 whatever this is set
	// to.
	DigestAlgorithm string `toml:"digest_algorithm"`

	// DataDir holds the pending-commitment store (pending.db).
	DataDir string `toml:"data_dir"`

	// WatchPaths lists directories to monitor for new or changed files to
	// stamp automatically. It is loaded, validated and saved with the rest
	// of the config; no command in this module passes it to watchstamp.
	WatchPaths []string `toml:"watch_paths"`

	// UpgradePollIntervalSec is how often a running upgrade daemon
	// retries outstanding Pending leaves.
	UpgradePollIntervalSec int `toml:"upgrade_poll_interval_sec"`

	// BlockExplorerURL is the Esplora-compatible base URL verification
	// fetches block headers from.
	BlockExplorerURL string `toml:"block_explorer_url"`
}

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every field that failed validation.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".otsproof")

	return &Config{
		Calendars: []string{
			"https://a.pool.opentimestamps.org",
			"https://b.pool.opentimestamps.org",
		},
		DigestAlgorithm:        digest.SHA256.String(),
		DataDir:                dataDir,
		WatchPaths:             nil,
		UpgradePollIntervalSec: 3600,
		BlockExplorerURL:       "https://blockstream.info/api",
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".otsproof", "config.toml")
}

// Load reads and validates configuration from path. A missing file yields
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Validate checks cfg for internally consistent, usable values.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if len(cfg.Calendars) == 0 {
		errs = append(errs, &ValidationError{Field: "calendars", Message: "at least one calendar is required"})
	}

	if _, err := digestByName(cfg.DigestAlgorithm); err != nil {
		errs = append(errs, &ValidationError{Field: "digest_algorithm", Message: err.Error()})
	}

	if cfg.DataDir == "" {
		errs = append(errs, &ValidationError{Field: "data_dir", Message: "must not be empty"})
	}

	if cfg.UpgradePollIntervalSec <= 0 {
		errs = append(errs, &ValidationError{Field: "upgrade_poll_interval_sec", Message: "must be positive"})
	}

	if cfg.BlockExplorerURL == "" {
		errs = append(errs, &ValidationError{Field: "block_explorer_url", Message: "must not be empty"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// UpgradePollInterval returns the configured poll interval as a Duration.
func (c *Config) UpgradePollInterval() time.Duration {
	return time.Duration(c.UpgradePollIntervalSec) * time.Second
}

// DefaultDigestType resolves DigestAlgorithm to a digest.Type.
func (c *Config) DefaultDigestType() (digest.Type, error) {
	return digestByName(c.DigestAlgorithm)
}

func digestByName(name string) (digest.Type, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return digest.SHA1, nil
	case "sha256":
		return digest.SHA256, nil
	case "ripemd160":
		return digest.RIPEMD160, nil
	default:
		return 0, fmt.Errorf("unknown digest algorithm %q", name)
	}
}
