// Package modelstore persists trained congestion models as blobs, either in
// a JSON file or in a SQLite table.
package modelstore

import (
	"errors"
	"fmt"

	"github.com/kilianp07/railflow/core/pipeline"
)

// ErrPersistence is returned when a model blob cannot be written, is missing
// or is corrupt.
var ErrPersistence = errors.New("model persistence error")

// Backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store is a ModelStore holding resources.
type Store interface {
	pipeline.ModelStore
	Close() error
}

// Config selects the store.
type Config struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// Name identifies the model inside a SQLite database.
	Name string `json:"name"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendJSON
	}
	if c.Path == "" {
		if c.Backend == BackendSQLite {
			c.Path = "models.db"
		} else {
			c.Path = "trained_congestion_model.json"
		}
	}
	if c.Name == "" {
		c.Name = "congestion"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Backend != BackendJSON && c.Backend != BackendSQLite {
		return fmt.Errorf("unknown model backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("model path is required")
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
		s, err := NewSQLiteStore(cfg.Path, cfg.Name)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return NewFileStore(cfg.Path), nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
