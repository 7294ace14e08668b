package resultstore

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/railflow/core/model"
)

// RotatingJSONLStore stores envelopes in a JSONL file with automatic rotation.
type RotatingJSONLStore struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
}

// NewRotatingJSONLStore creates a store with rotation options in megabytes and days.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   false,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &RotatingJSONLStore{logger: lj, path: path}, nil
}

// Append writes the envelope and triggers rotation if needed.
func (s *RotatingJSONLStore) Append(ctx context.Context, env model.ResultEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.logger.Write(append(b, '\n'))
	return err
}

// files returns the active file and its rotated backups. Backups are named
// <name>-<timestamp><ext> by lumberjack.
func (s *RotatingJSONLStore) files() ([]string, error) {
	ext := filepath.Ext(s.path)
	base := strings.TrimSuffix(filepath.Base(s.path), ext)
	backups, err := filepath.Glob(filepath.Join(filepath.Dir(s.path), base+"-*"+ext))
	if err != nil {
		return nil, err
	}
	return append(backups, s.path), nil
}

// Query reads all log files including rotated ones, oldest first.
func (s *RotatingJSONLStore) Query(ctx context.Context, q Query) ([]model.ResultEnvelope, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.ResultEnvelope
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := os.Open(f)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
		for scanner.Scan() {
			var env model.ResultEnvelope
			if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
				continue
			}
			if q.matches(env) {
				res = append(res, env)
			}
		}
		_ = file.Close()
	}
	sortByTime(res)
	return limit(res, q.Limit), nil
}

// Latest returns the most recent envelope.
func (s *RotatingJSONLStore) Latest(ctx context.Context) (model.ResultEnvelope, error) {
	res, err := s.Query(ctx, Query{Limit: 1})
	if err != nil {
		return model.ResultEnvelope{}, err
	}
	if len(res) == 0 {
		return model.ResultEnvelope{}, ErrNotFound
	}
	return res[0], nil
}

// Close closes the underlying writer.
func (s *RotatingJSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger.Close()
}
