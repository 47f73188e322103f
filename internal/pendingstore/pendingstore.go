// Package pendingstore tracks outstanding Pending commitments awaiting
// calendar confirmation in a SQLite database, so an upgrade daemon can
// retry them without rescanning the filesystem.
package pendingstore

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    path            TEXT NOT NULL,
    commitment      BLOB NOT NULL,
    calendar_uri    TEXT NOT NULL,
    submitted_ns    INTEGER NOT NULL,
    last_checked_ns INTEGER,
    UNIQUE(path, calendar_uri)
);

CREATE INDEX IF NOT EXISTS idx_pending_checked ON pending(last_checked_ns);
`

// Entry is one outstanding commitment submitted to a single calendar.
type Entry struct {
	ID            int64
	Path          string
	Commitment    [32]byte
	CalendarURI   string
	SubmittedAt   time.Time
	LastCheckedAt time.Time
}

// Store is the SQLite-backed pending-commitment table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path, applying the
// schema and taking the platform-specific first-run directory lock.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("pendingstore: create data dir: %w", err)
	}

	unlock, err := lockDataDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pendingstore: lock data dir: %w", err)
	}
	defer unlock()

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("pendingstore: open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("pendingstore: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Insert records a commitment submitted to calendarURI for path.
func (s *Store) Insert(path string, commitment [32]byte, calendarURI string, submittedAt time.Time) (int64, error) {
	result, err := s.db.Exec(`
		INSERT OR IGNORE INTO pending (path, commitment, calendar_uri, submitted_ns)
		VALUES (?, ?, ?, ?)`,
		path, commitment[:], calendarURI, submittedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("pendingstore: insert: %w", err)
	}
	return result.LastInsertId()
}

// MarkChecked updates an entry's last-checked timestamp.
func (s *Store) MarkChecked(id int64, at time.Time) error {
	_, err := s.db.Exec(`UPDATE pending SET last_checked_ns = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("pendingstore: mark checked: %w", err)
	}
	return nil
}

// Delete removes an entry, typically once its leaf has been upgraded.
func (s *Store) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM pending WHERE id = ?`, id); err != nil {
		return fmt.Errorf("pendingstore: delete: %w", err)
	}
	return nil
}

// Pending returns every outstanding entry, oldest-checked first.
func (s *Store) Pending() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, path, commitment, calendar_uri, submitted_ns, COALESCE(last_checked_ns, 0)
		FROM pending
		ORDER BY last_checked_ns ASC NULLS FIRST`)
	if err != nil {
		return nil, fmt.Errorf("pendingstore: query pending: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			commitment  []byte
			submittedNs int64
			checkedNs   int64
		)
		if err := rows.Scan(&e.ID, &e.Path, &commitment, &e.CalendarURI, &submittedNs, &checkedNs); err != nil {
			return nil, fmt.Errorf("pendingstore: scan: %w", err)
		}
		if len(commitment) != 32 {
			return nil, fmt.Errorf("pendingstore: entry %d has commitment of length %d, want 32", e.ID, len(commitment))
		}
		copy(e.Commitment[:], commitment)
		e.SubmittedAt = time.Unix(0, submittedNs).UTC()
		if checkedNs > 0 {
			e.LastCheckedAt = time.Unix(0, checkedNs).UTC()
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CommitmentHex returns e.Commitment hex-encoded, for logging.
func (e Entry) CommitmentHex() string {
	return hex.EncodeToString(e.Commitment[:])
}
