//go:build windows

package pendingstore

// lockDataDir is a no-op on Windows; SQLite's own file locking is
// sufficient there and flock has no direct equivalent.
func lockDataDir(dir string) (func(), error) {
	return func() {}, nil
}
