// Package state manages the SQLite database that caches each dog's merged
// reminder set and the last-synchronization timestamp round-tripped to the
// server.
//
// Only this package may open or query the database. All other packages
// receive a [*Store] and call its methods.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/houndapp/houndsync/internal/reminder"
)

const schema = `
CREATE TABLE IF NOT EXISTS reminders (
    dog_id      INTEGER NOT NULL,
    reminder_id INTEGER NOT NULL,
    payload     TEXT    NOT NULL,
    PRIMARY KEY (dog_id, reminder_id)
);

CREATE TABLE IF NOT EXISTS sync_meta (
    dog_id         INTEGER PRIMARY KEY,
    last_synced_at TEXT NOT NULL DEFAULT ''
);
`

// Store is the SQLite-backed local cache.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the cache database:
// ~/.local/share/houndsync/state.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "houndsync", "state.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema,
// and configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadReminders returns a dog's cached reminders. Rows are stored as wire
// payloads and decoded leniently, so a schema-version mismatch degrades to
// defaults rather than failing the load.
func (s *Store) LoadReminders(ctx context.Context, dogID int64) ([]*reminder.Reminder, error) {
	const q = `SELECT payload FROM reminders WHERE dog_id = ? ORDER BY reminder_id`
	rows, err := s.db.QueryContext(ctx, q, dogID)
	if err != nil {
		return nil, fmt.Errorf("querying reminders for dog %d: %w", dogID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*reminder.Reminder
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning reminder row: %w", err)
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("decoding cached reminder for dog %d: %w", dogID, err)
		}
		out = append(out, reminder.FromPayload(payload))
	}
	return out, rows.Err()
}

// SaveReminders replaces a dog's cached reminder set in one transaction.
func (s *Store) SaveReminders(ctx context.Context, dogID int64, reminders []*reminder.Reminder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save for dog %d: %w", dogID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE dog_id = ?`, dogID); err != nil {
		return fmt.Errorf("clearing reminders for dog %d: %w", dogID, err)
	}

	const ins = `INSERT INTO reminders (dog_id, reminder_id, payload) VALUES (?, ?, ?)`
	for _, r := range reminders {
		raw, err := json.Marshal(r.ToPayload())
		if err != nil {
			return fmt.Errorf("encoding reminder %d: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, ins, dogID, r.ID, string(raw)); err != nil {
			return fmt.Errorf("inserting reminder %d for dog %d: %w", r.ID, dogID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save for dog %d: %w", dogID, err)
	}
	return nil
}

// LastSync returns the recorded last-synchronization timestamp for a dog, or
// the zero time if the dog has never synced.
func (s *Store) LastSync(ctx context.Context, dogID int64) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_synced_at FROM sync_meta WHERE dog_id = ?`, dogID).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading last sync for dog %d: %w", dogID, err)
	}
	return parseTime(raw)
}

// SetLastSync records the last-synchronization timestamp for a dog.
func (s *Store) SetLastSync(ctx context.Context, dogID int64, t time.Time) error {
	const q = `
		INSERT INTO sync_meta (dog_id, last_synced_at) VALUES (?, ?)
		ON CONFLICT(dog_id) DO UPDATE SET last_synced_at = excluded.last_synced_at`
	if _, err := s.db.ExecContext(ctx, q, dogID, formatTime(t)); err != nil {
		return fmt.Errorf("recording last sync for dog %d: %w", dogID, err)
	}
	return nil
}

// DogIDs returns every dog with cached reminders.
func (s *Store) DogIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT dog_id FROM reminders ORDER BY dog_id`)
	if err != nil {
		return nil, fmt.Errorf("querying dog ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning dog id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- helpers -----------------------------------------------------------------

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
