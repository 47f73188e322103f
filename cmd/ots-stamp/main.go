// Command ots-stamp hashes a document and submits the resulting
// commitment to one or more OpenTimestamps calendar servers, writing the
// initial detached proof alongside the document.
//
// Usage:
//
//	ots-stamp [flags] <file>
//
// Examples:
//
//	# Stamp a file using the configured default calendars
//	ots-stamp document.pdf
//
//	# Stamp with an explicit calendar list
//	ots-stamp -calendar https://a.pool.opentimestamps.org document.pdf
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"otsproof/internal/calendar"
	"otsproof/internal/config"
	"otsproof/internal/logging"
	"otsproof/internal/noncesource"
	"otsproof/internal/stamp"
	"otsproof/internal/timestampfile"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.otsproof/config.toml)")
	calendarsFlag := flag.String("calendar", "", "comma-separated calendar URLs (overrides config)")
	output := flag.String("output", "", "output proof path (default: <file>.ots)")
	timeout := flag.Duration("timeout", 30*time.Second, "calendar submission timeout")
	versionFlag := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ots-stamp - submit a document's digest to OpenTimestamps calendars\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag {
		fmt.Printf("ots-stamp %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: file required")
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	calendars := cfg.Calendars
	if *calendarsFlag != "" {
		calendars = strings.Split(*calendarsFlag, ",")
	}

	logger := logging.Default()

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening file: %v\n", err)
		os.Exit(1)
	}
	digestType, digestBytes, err := stamp.Document(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing file: %v\n", err)
		os.Exit(1)
	}

	client := calendar.NewHTTPClient(calendars, *timeout)
	nonces := noncesource.New()
	defer nonces.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	file, err := stamp.File(ctx, logger.Logger, nonces, client, calendars, digestType, digestBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error stamping file: %v\n", err)
		os.Exit(1)
	}

	outPath := *output
	if outPath == "" {
		outPath = path + ".ots"
	}
	if err := writeProof(outPath, file); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing proof: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Stamped %s -> %s\n", path, outPath)
}

func writeProof(path string, file *timestampfile.File) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer f.Close()
	return file.WriteTo(f)
}
