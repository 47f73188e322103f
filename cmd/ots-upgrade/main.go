// Command ots-upgrade retries outstanding Pending leaves in a detached
// proof, replacing each with the calendar-fetched subtree once anchored.
// With -daemon it polls every configured path in the pending-commitment
// store on a fixed interval instead of exiting after one pass.
//
// Usage:
//
//	ots-upgrade [flags] <file.ots>
//	ots-upgrade -daemon [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"otsproof/internal/calendar"
	"otsproof/internal/config"
	"otsproof/internal/logging"
	"otsproof/internal/pendingstore"
	"otsproof/internal/timestampfile"
	"otsproof/internal/upgrade"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.otsproof/config.toml)")
	daemon := flag.Bool("daemon", false, "run continuously, polling the pending-commitment store")
	timeout := flag.Duration("timeout", 30*time.Second, "calendar request timeout per attempt")
	versionFlag := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ots-upgrade - retry outstanding calendar commitments\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file.ots>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -daemon [flags]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag {
		fmt.Printf("ots-upgrade %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Default()
	client := calendar.NewHTTPClient(cfg.Calendars, *timeout)

	if *daemon {
		runDaemon(cfg, logger.Logger, client, *timeout)
		return
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: proof file required (or pass -daemon)")
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	changed, err := upgradeFile(path, logger.Logger, client, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error upgrading %s: %v\n", path, err)
		os.Exit(1)
	}
	if changed {
		fmt.Printf("Upgraded %s\n", path)
	} else {
		fmt.Printf("%s unchanged (still pending)\n", path)
	}
}

func upgradeFile(path string, logger *slog.Logger, client *calendar.HTTPClient, timeout time.Duration) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	file, err := timestampfile.ReadFrom(f)
	f.Close()
	if err != nil {
		return false, fmt.Errorf("read proof: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	changed, err := upgrade.Tree(ctx, logger, client, file.Root)
	if err != nil {
		return false, fmt.Errorf("upgrade: %w", err)
	}
	if !changed {
		return false, nil
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return false, fmt.Errorf("rewrite proof: %w", err)
	}
	defer out.Close()
	if err := file.WriteTo(out); err != nil {
		return false, fmt.Errorf("write proof: %w", err)
	}
	return true, nil
}

func runDaemon(cfg *config.Config, logger *slog.Logger, client *calendar.HTTPClient, timeout time.Duration) {
	storePath := filepath.Join(cfg.DataDir, "pending.db")
	store, err := pendingstore.Open(storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening pending store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	interval := cfg.UpgradePollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("ots-upgrade: daemon started", "interval", interval.String())

	for range ticker.C {
		entries, err := store.Pending()
		if err != nil {
			logger.Error("ots-upgrade: list pending failed", "error", err)
			continue
		}

		for _, entry := range entries {
			changed, err := upgradeFile(entry.Path+".ots", logger, client, timeout)
			now := time.Now().UTC()
			if err != nil {
				logger.Warn("ots-upgrade: retry failed", "path", entry.Path, "error", err)
				store.MarkChecked(entry.ID, now)
				continue
			}
			store.MarkChecked(entry.ID, now)
			if changed {
				logger.Info("ots-upgrade: proof upgraded", "path", entry.Path)
				store.Delete(entry.ID)
			}
		}
	}
}
