package persistence

import (
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite"

	"github.com/rcourtman/insightctl/internal/state"
)

// SQLite is a single-row upsert Port: the entire snapshot is stored as
// one JSON blob in a one-row table. No transactions are required since
// every write replaces the whole row.
type SQLite struct {
	path string
	db   *sql.DB
}

func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

func (s *SQLite) Init() error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *SQLite) Load() (*state.Snapshot, error) {
	row := s.db.QueryRow(`SELECT payload FROM snapshot WHERE id = 1`)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var snap state.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLite) Save(snap state.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO snapshot (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`, string(payload))
	return err
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
