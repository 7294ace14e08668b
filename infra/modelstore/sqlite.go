package modelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/railflow/core/classifier"
)

// SQLiteStore keeps every saved version of a named model. Load returns the
// most recent one.
type SQLiteStore struct {
	db   *sql.DB
	name string
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path, name string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, persistErr("open", err)
	}
	schema := `CREATE TABLE IF NOT EXISTS models (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        created_at INTEGER NOT NULL,
        family TEXT,
        blob BLOB NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, persistErr("schema", err)
	}
	return &SQLiteStore{db: db, name: name}, nil
}

// Save inserts a new version of the model.
func (s *SQLiteStore) Save(ctx context.Context, m *classifier.TrainedModel) error {
	blob, err := m.MarshalBlob()
	if err != nil {
		return persistErr("encode", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO models (name, created_at, family, blob) VALUES (?, ?, ?, ?)`,
		s.name, time.Now().UnixNano(), string(m.Family()), blob)
	if err != nil {
		return persistErr("insert", err)
	}
	return nil
}

// Load returns the latest version of the model.
func (s *SQLiteStore) Load(ctx context.Context) (*classifier.TrainedModel, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM models WHERE name = ? ORDER BY id DESC LIMIT 1`, s.name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistErr("load", fmt.Errorf("no model named %q", s.name))
	}
	if err != nil {
		return nil, persistErr("load", err)
	}
	m, err := classifier.UnmarshalBlob(blob)
	if err != nil {
		return nil, persistErr("decode", err)
	}
	return m, nil
}

// Versions returns how many versions of the model are stored.
func (s *SQLiteStore) Versions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM models WHERE name = ?`, s.name).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
