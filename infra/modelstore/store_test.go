package modelstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railflow/core/classifier"
	"github.com/kilianp07/railflow/core/model"
	"github.com/kilianp07/railflow/core/synthetic"
)

var (
	once     sync.Once
	fixture  *classifier.TrainedModel
	trainErr error
)

func trained(t *testing.T) *classifier.TrainedModel {
	t.Helper()
	once.Do(func() {
		tr := classifier.Trainer{Params: classifier.Params{Trees: 8, MaxDepth: 5, BoostingStages: 8, BoostingDepth: 3, Folds: 2, Seed: 4}}
		_, fixture, trainErr = tr.Train(context.Background(), synthetic.Generate(600, 21))
	})
	require.NoError(t, trainErr)
	return fixture
}

func holdout() []model.TrainRecord {
	return model.Records(synthetic.Generate(200, 99))
}

func assertSamePredictions(t *testing.T, want, got *classifier.TrainedModel) {
	t.Helper()
	recs := holdout()
	a, err := want.Predict(recs)
	require.NoError(t, err)
	b, err := got.Predict(recs)
	require.NoError(t, err)
	assert.Equal(t, a.Labels, b.Labels)
	require.Len(t, b.Probabilities, len(a.Probabilities))
	for i := range a.Probabilities {
		assert.InDelta(t, a.Probabilities[i], b.Probabilities[i], 1e-12)
	}
	assert.Equal(t, want.FeatureNames(), got.FeatureNames())
	assert.Equal(t, want.Family(), got.Family())
}

func TestFileStoreRoundTrip(t *testing.T) {
	m := trained(t)
	path := filepath.Join(t.TempDir(), "models", "congestion.json")
	s := NewFileStore(path)

	require.NoError(t, s.Save(context.Background(), m))
	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assertSamePredictions(t, m, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestFileStoreErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileStore(filepath.Join(dir, "missing.json")).Load(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"model": 1}`), 0o644))
	_, err = NewFileStore(corrupt).Load(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorContains(t, err, "decode")
}

func TestSQLiteStoreVersions(t *testing.T) {
	m := trained(t)
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "models.db"), "congestion")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)

	require.NoError(t, s.Save(context.Background(), m))
	require.NoError(t, s.Save(context.Background(), m))
	n, err := s.Versions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assertSamePredictions(t, m, loaded)
}

func TestSQLiteStoreCorruptBlob(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "models.db"), "broken")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	_, err = s.db.Exec(`INSERT INTO models (name, created_at, family, blob) VALUES ('broken', 1, 'x', 'not json')`)
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Config{Path: filepath.Join(dir, "m.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = New(Config{Backend: BackendSQLite, Path: filepath.Join(dir, "m.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(Config{Backend: "s3"})
	assert.Error(t, err)
}
