package modelstore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/kilianp07/railflow/core/classifier"
)

// FileStore keeps one model blob in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

// Save writes the blob to a temporary file and renames it over path.
func (s *FileStore) Save(ctx context.Context, m *classifier.TrainedModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := m.MarshalBlob()
	if err != nil {
		return persistErr("encode", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistErr("mkdir", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return persistErr("create", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return persistErr("write", err)
	}
	if err := tmp.Close(); err != nil {
		return persistErr("close", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return persistErr("rename", err)
	}
	return nil
}

// Load reads and validates the blob.
func (s *FileStore) Load(ctx context.Context) (*classifier.TrainedModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(s.path)
	if err != nil {
		return nil, persistErr("read", err)
	}
	m, err := classifier.UnmarshalBlob(blob)
	if err != nil {
		return nil, persistErr("decode "+s.path, err)
	}
	return m, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
