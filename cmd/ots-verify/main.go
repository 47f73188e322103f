// Command ots-verify verifies a detached OpenTimestamps proof against a
// block header fetched from a configured Esplora-compatible explorer,
// optionally writing a JSON evidence packet of the result.
//
// Usage:
//
//	ots-verify [flags] <file.ots>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"otsproof/internal/blockheader"
	"otsproof/internal/config"
	"otsproof/internal/evidencepacket"
	"otsproof/internal/timestampfile"
	"otsproof/internal/verifywalk"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.otsproof/config.toml)")
	explorer := flag.String("explorer", "", "Esplora-compatible block explorer base URL (overrides config)")
	evidenceOut := flag.String("evidence", "", "write a JSON evidence packet to this path")
	timeout := flag.Duration("timeout", 30*time.Second, "verification timeout")
	quiet := flag.Bool("quiet", false, "print nothing; report the result only through the exit status")
	versionFlag := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ots-verify - verify a detached OpenTimestamps proof\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file.ots>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag {
		fmt.Printf("ots-verify %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: proof file required")
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	explorerURL := cfg.BlockExplorerURL
	if *explorer != "" {
		explorerURL = *explorer
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening proof: %v\n", err)
		os.Exit(1)
	}
	file, err := timestampfile.ReadFrom(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading proof: %v\n", err)
		os.Exit(1)
	}

	verifier := blockheader.NewEsploraClient(explorerURL)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, verr := verifywalk.Tree(ctx, verifier, file.Root)
	if verr != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "Verification failed: %v\n", verr)
		}
		if *evidenceOut != "" {
			writeEvidence(*evidenceOut, file, nil)
		}
		os.Exit(1)
	}

	if !*quiet {
		fmt.Printf("Verified: committed to Bitcoin block %d at %s\n",
			result.Height, time.Unix(int64(result.BlockTime), 0).UTC().Format(time.RFC3339))
	}

	if *evidenceOut != "" {
		if err := writeEvidence(*evidenceOut, file, result); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing evidence packet: %v\n", err)
			os.Exit(1)
		}
	}
}

func writeEvidence(path string, file *timestampfile.File, result *verifywalk.Result) error {
	packet := evidencepacket.Build(file, result)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer f.Close()
	return evidencepacket.WriteTo(f, packet)
}
