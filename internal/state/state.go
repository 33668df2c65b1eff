// Package state persists lightweight UI state (active view, per-view
// scroll offsets) between sessions. Articles themselves are never
// stored locally; they always come from the server.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	db *sql.DB
}

func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &DB{db: db}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ui_state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS scroll (
			view_id TEXT PRIMARY KEY,
			offset  INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *DB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *DB) setKey(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO ui_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *DB) getKey(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM ui_state WHERE key = ?", key).Scan(&value)
	return value, err
}

// ActiveView returns the view id that was active when the app last
// quit, or "" if none was recorded.
func (s *DB) ActiveView() string {
	v, err := s.getKey("active_view")
	if err != nil {
		return ""
	}
	return v
}

func (s *DB) SetActiveView(viewID string) error {
	return s.setKey("active_view", viewID)
}

// SetScrollOffset records one view's scroll offset.
func (s *DB) SetScrollOffset(viewID string, offset int) error {
	_, err := s.db.Exec(`
		INSERT INTO scroll (view_id, offset) VALUES (?, ?)
		ON CONFLICT(view_id) DO UPDATE SET offset = excluded.offset
	`, viewID, offset)
	return err
}

// ScrollOffsets returns every remembered scroll offset keyed by view id.
func (s *DB) ScrollOffsets() (map[string]int, error) {
	rows, err := s.db.Query("SELECT view_id, offset FROM scroll")
	if err != nil {
		return nil, fmt.Errorf("querying scroll offsets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var off int
		if err := rows.Scan(&id, &off); err != nil {
			return nil, fmt.Errorf("scanning scroll offset: %w", err)
		}
		out[id] = off
	}
	return out, rows.Err()
}

// DropScroll forgets a view's offset (its owning tag was deleted).
func (s *DB) DropScroll(viewID string) error {
	_, err := s.db.Exec("DELETE FROM scroll WHERE view_id = ?", viewID)
	return err
}

// Clear wipes all persisted UI state.
func (s *DB) Clear() error {
	_, err := s.db.Exec("DELETE FROM ui_state; DELETE FROM scroll;")
	return err
}

// Stats reports the number of remembered views and the db size on disk.
func (s *DB) Stats(dbPath string) (views int, size int64, err error) {
	if err = s.db.QueryRow("SELECT COUNT(*) FROM scroll").Scan(&views); err != nil {
		return 0, 0, err
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		return views, 0, err
	}
	return views, info.Size(), nil
}
