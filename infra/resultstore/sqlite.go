package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/railflow/core/model"
)

// SQLiteStore persists envelopes to a SQLite database. Train ids referenced
// by an envelope are indexed in a side table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS results (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT,
        ts INTEGER,
        congestion_rate REAL,
        record TEXT
    );
    CREATE TABLE IF NOT EXISTS result_trains (
        result_id INTEGER,
        train_id TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_results_ts ON results(ts);
    CREATE INDEX IF NOT EXISTS idx_result_trains_train ON result_trains(train_id);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func trainIDs(env model.ResultEnvelope) []string {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, t := range env.HighRiskTrains {
		add(t.TrainID)
	}
	for _, s := range env.OptimizationSuggestions {
		add(s.TrainID)
	}
	return ids
}

// Append writes the envelope to the database.
func (s *SQLiteStore) Append(ctx context.Context, env model.ResultEnvelope) (err error) {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO results (run_id, ts, congestion_rate, record) VALUES (?, ?, ?, ?)`,
		env.RunID, env.Timestamp.UnixNano(), env.CongestionRate, string(b))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, train := range trainIDs(env) {
		if _, err = tx.ExecContext(ctx, `INSERT INTO result_trains (result_id, train_id) VALUES (?, ?)`, id, train); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns envelopes matching q, oldest first.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]model.ResultEnvelope, error) {
	var args []any
	where := ` WHERE 1=1`
	if !q.From.IsZero() {
		where += ` AND ts >= ?`
		args = append(args, q.From.UnixNano())
	}
	if !q.To.IsZero() {
		where += ` AND ts <= ?`
		args = append(args, q.To.UnixNano())
	}
	if q.TrainID != "" {
		where += ` AND EXISTS (SELECT 1 FROM result_trains t WHERE t.result_id = r.id AND t.train_id = ?)`
		args = append(args, q.TrainID)
	}
	query := `SELECT record FROM results r` + where + ` ORDER BY ts, id`
	if q.Limit > 0 {
		query = `SELECT record FROM (SELECT id, ts, record FROM results r` + where +
			` ORDER BY ts DESC, id DESC LIMIT ?) ORDER BY ts, id`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.ResultEnvelope
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var env model.ResultEnvelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, env)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Latest returns the most recent envelope.
func (s *SQLiteStore) Latest(ctx context.Context) (model.ResultEnvelope, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM results ORDER BY ts DESC, id DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ResultEnvelope{}, ErrNotFound
	}
	if err != nil {
		return model.ResultEnvelope{}, err
	}
	var env model.ResultEnvelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return model.ResultEnvelope{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return env, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
