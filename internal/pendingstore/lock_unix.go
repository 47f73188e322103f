//go:build !windows

package pendingstore

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lockDataDir takes an advisory exclusive lock on dir for the duration of
// schema setup, guarding against two processes racing to create the
// database file for the first time. The returned func releases it.
func lockDataDir(dir string) (func(), error) {
	lockPath := filepath.Join(dir, ".pendingstore.lock")

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
