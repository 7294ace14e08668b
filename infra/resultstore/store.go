// Package resultstore keeps the history of prediction envelopes.
package resultstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/railflow/core/model"
)

// ErrNotFound is returned by Latest when the history is empty.
var ErrNotFound = errors.New("no results recorded")

// Query filters stored envelopes. Zero values match everything. TrainID
// matches envelopes listing the train as high risk or in a suggestion.
type Query struct {
	From    time.Time
	To      time.Time
	TrainID string
	Limit   int
}

func (q Query) matches(env model.ResultEnvelope) bool {
	if !q.From.IsZero() && env.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && env.Timestamp.After(q.To) {
		return false
	}
	if q.TrainID == "" {
		return true
	}
	for _, t := range env.HighRiskTrains {
		if t.TrainID == q.TrainID {
			return true
		}
	}
	for _, s := range env.OptimizationSuggestions {
		if s.TrainID == q.TrainID {
			return true
		}
	}
	return false
}

// Store persists envelopes and supports querying.
type Store interface {
	Append(ctx context.Context, env model.ResultEnvelope) error
	Query(ctx context.Context, q Query) ([]model.ResultEnvelope, error)
	Latest(ctx context.Context) (model.ResultEnvelope, error)
	Close() error
}

// Backends.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// Config defines the history storage and rotation.
type Config struct {
	// Backend selects the store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendJSONL
	}
	if c.Path == "" {
		if c.Backend == BackendSQLite {
			c.Path = "results.db"
		} else {
			c.Path = "results.jsonl"
		}
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Backend != BackendJSONL && c.Backend != BackendSQLite {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// New opens the store described by cfg.
func New(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendSQLite {
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func limit(res []model.ResultEnvelope, n int) []model.ResultEnvelope {
	if n > 0 && len(res) > n {
		return res[len(res)-n:]
	}
	return res
}

func sortByTime(res []model.ResultEnvelope) {
	slices.SortStableFunc(res, func(a, b model.ResultEnvelope) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
