// Package notifystore persists notifications to a SQLite database so
// history survives process restarts.
package notifystore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY,
	app_name TEXT NOT NULL,
	summary TEXT NOT NULL,
	body TEXT NOT NULL,
	icon TEXT NOT NULL,
	urgency INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	actions TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_timestamp_idx ON notifications (timestamp DESC);
`

// loadAllLimit is the number of most-recent rows LoadAll returns. Older
// rows stay in the table; Save does not trim them.
const loadAllLimit = 100

// Action is an ordered (key, label) pair, matching the wire contract
// describing a single notification action.
type Action struct {
	Key   string
	Label string
}

// Record is one persisted notification row.
type Record struct {
	ID        uint32
	AppName   string
	Summary   string
	Body      string
	Icon      string
	Urgency   uint8
	Timestamp int64 // unix seconds, UTC
	Actions   []Action
}

// Store wraps a SQLite-backed notification history.
type Store struct {
	db *sql.DB
}

// DefaultPath returns $XDG_DATA_HOME/hyprline-notifications/notifications.db,
// falling back to $HOME/.local/share/hyprline-notifications/notifications.db.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home := os.Getenv("HOME")
		if home == "" {
			home = "."
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "hyprline-notifications", "notifications.db")
}

// Open opens (creating if necessary) the SQLite database at path,
// creating its parent directory and schema as needed. An empty path uses
// DefaultPath().
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create notification store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open notification store: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer semantics; avoid SQLITE_BUSY races

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create notification schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a record by id.
func (s *Store) Save(r Record) error {
	actionsJSON, err := json.Marshal(actionPairs(r.Actions))
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO notifications (id, app_name, summary, body, icon, urgency, timestamp, actions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AppName, r.Summary, r.Body, r.Icon, r.Urgency, r.Timestamp, string(actionsJSON),
	)
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

// LoadAll returns the 100 newest rows, timestamp-descending.
func (s *Store) LoadAll() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, app_name, summary, body, icon, urgency, timestamp, actions
		 FROM notifications ORDER BY timestamp DESC LIMIT ?`,
		loadAllLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var actionsJSON string
		if err := rows.Scan(&r.ID, &r.AppName, &r.Summary, &r.Body, &r.Icon, &r.Urgency, &r.Timestamp, &actionsJSON); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		r.Actions = parseActionPairs(actionsJSON)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}
	return out, nil
}

// Count returns the number of stored notifications.
func (s *Store) Count() (uint32, error) {
	var count uint32
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

// Delete removes the row with the given id, reporting whether it existed.
func (s *Store) Delete(id uint32) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	return n > 0, nil
}

// ClearAll removes every row, returning the number removed.
func (s *Store) ClearAll() (uint32, error) {
	result, err := s.db.Exec(`DELETE FROM notifications`)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	return uint32(n), nil
}

// MaxID returns the largest id currently stored, or 0 when empty.
func (s *Store) MaxID() (uint32, error) {
	var max sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(id) FROM notifications`).Scan(&max); err != nil {
		return 0, fmt.Errorf("max notification id: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return uint32(max.Int64), nil
}

func actionPairs(actions []Action) [][2]string {
	out := make([][2]string, len(actions))
	for i, a := range actions {
		out[i] = [2]string{a.Key, a.Label}
	}
	return out
}

func parseActionPairs(encoded string) []Action {
	var pairs [][2]string
	if err := json.Unmarshal([]byte(encoded), &pairs); err != nil {
		return nil
	}
	out := make([]Action, len(pairs))
	for i, p := range pairs {
		out[i] = Action{Key: p[0], Label: p[1]}
	}
	return out
}
