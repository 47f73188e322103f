// Package watchstamp monitors files and directories for changes and
// stamps any file that has gone stable since its last modification,
// writing a detached proof alongside it.
package watchstamp

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"otsproof/internal/calendar"
	"otsproof/internal/digest"
	"otsproof/internal/noncesource"
	"otsproof/internal/stamp"
	"otsproof/internal/timestampfile"
)

// ProofSuffix is appended to a watched file's path to form the detached
// proof's path.
const ProofSuffix = ".ots"

// Event reports that a file was stamped.
type Event struct {
	Path      string
	Hash      [32]byte
	Size      int64
	Timestamp time.Time
}

// Watcher monitors configured paths and stamps files once they stop
// changing for the debounce interval.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	paths     []string
	interval  time.Duration

	client    calendar.Client
	calendars []string
	nonces    noncesource.Source
	logger    *slog.Logger

	state   map[string]time.Time
	stateMu sync.RWMutex

	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Watcher over paths, debouncing file changes for
// intervalSec seconds before submitting a stamp.
func New(paths []string, intervalSec int, client calendar.Client, calendars []string, nonces noncesource.Source, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watchstamp: new fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		paths:     paths,
		interval:  time.Duration(intervalSec) * time.Second,
		client:    client,
		calendars: calendars,
		nonces:    nonces,
		logger:    logger,
		state:     make(map[string]time.Time),
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of stamped-file events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of non-fatal errors encountered while
// watching or stamping.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching all configured paths.
func (w *Watcher) Start() error {
	for _, path := range w.paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if err := w.fsWatcher.Add(absPath); err != nil {
				return err
			}

			entries, err := os.ReadDir(absPath)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if !entry.IsDir() && !isProofFile(entry.Name()) {
					w.trackFile(filepath.Join(absPath, entry.Name()))
				}
			}
		} else {
			dir := filepath.Dir(absPath)
			if err := w.fsWatcher.Add(dir); err != nil {
				return err
			}
			w.trackFile(absPath)
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	return nil
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

func (w *Watcher) trackFile(path string) {
	if isProofFile(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	w.stateMu.Lock()
	w.state[path] = info.ModTime()
	w.stateMu.Unlock()
}

func isProofFile(name string) bool {
	return filepath.Ext(name) == ProofSuffix
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if isProofFile(event.Name) {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}

			w.stateMu.Lock()
			w.state[event.Name] = time.Now()
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.checkStableFiles(now)
		}
	}
}

func (w *Watcher) checkStableFiles(now time.Time) {
	w.stateMu.Lock()
	threshold := now.Add(-w.interval)
	var stable []string
	for path, lastMod := range w.state {
		if lastMod.Before(threshold) {
			stable = append(stable, path)
			delete(w.state, path)
		}
	}
	w.stateMu.Unlock()

	for _, path := range stable {
		w.stampFile(path, now)
	}
}

func (w *Watcher) stampFile(path string, now time.Time) {
	hash, size, err := HashFile(path)
	if err != nil {
		w.reportError(err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	file, err := stamp.File(ctx, w.logger, w.nonces, w.client, w.calendars, digest.SHA256, hash[:])
	if err != nil {
		w.reportError(fmt.Errorf("watchstamp: stamp %s: %w", path, err))
		return
	}

	if err := writeProof(path+ProofSuffix, file); err != nil {
		w.reportError(fmt.Errorf("watchstamp: write proof for %s: %w", path, err))
		return
	}

	event := Event{Path: path, Hash: hash, Size: size, Timestamp: now}
	select {
	case w.events <- event:
	default:
	}
}

func (w *Watcher) reportError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

func writeProof(path string, file *timestampfile.File) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer f.Close()
	return file.WriteTo(f)
}

// WatchedPaths returns the configured top-level watch paths.
func (w *Watcher) WatchedPaths() []string {
	return w.paths
}

// TrackedFiles returns the current number of files pending debounce.
func (w *Watcher) TrackedFiles() int {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return len(w.state)
}

// HashFile computes the SHA-256 hash of a file using streaming, so large
// files never need to be loaded into memory.
func HashFile(path string) ([32]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash, size, nil
}

var errNoPaths = errors.New("watchstamp: no paths configured")

// Validate checks that paths is non-empty before Start is called.
func Validate(paths []string) error {
	if len(paths) == 0 {
		return errNoPaths
	}
	return nil
}
