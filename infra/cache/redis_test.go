package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railflow/core/model"
)

type fakeKV struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
	closed  bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Ping(context.Context) *redis.StatusCmd { return redis.NewStatusResult("PONG", nil) }

func (f *fakeKV) Close() error {
	f.closed = true
	return nil
}

func TestLatestCache_RoundTrip(t *testing.T) {
	kv := newFakeKV()
	c := newLatestCache(kv, Config{TTLSeconds: 60})

	_, ok, err := c.GetLatest(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	env := model.ResultEnvelope{
		RunID:       "r1",
		Timestamp:   time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		TotalTrains: 2,
		Summary:     model.Summary{CongestionRate: "50.0%", TopAction: model.ActionReroute},
	}
	require.NoError(t, c.SetLatest(context.Background(), env))
	assert.Equal(t, time.Minute, kv.ttls[DefaultKey])

	got, ok, err := c.GetLatest(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", got.RunID)
	assert.True(t, env.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, "50.0%", got.Summary.CongestionRate)

	require.NoError(t, c.HealthCheck(context.Background()))
	require.NoError(t, c.Close())
	assert.True(t, kv.closed)
}

func TestLatestCache_Errors(t *testing.T) {
	kv := newFakeKV()
	c := newLatestCache(kv, Config{Key: "k"})
	kv.data["k"] = "{not json"
	_, _, err := c.GetLatest(context.Background())
	assert.Error(t, err)

	boom := errors.New("down")
	kv.failGet = boom
	_, ok, err := c.GetLatest(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
}

func TestConfig(t *testing.T) {
	var c Config
	assert.False(t, c.Enabled())
	c.SetDefaults()
	assert.Equal(t, DefaultKey, c.Key)
	assert.Equal(t, 5*time.Minute, c.TTL())
	require.NoError(t, c.Validate())

	c.DB = -1
	assert.Error(t, c.Validate())
	c = Config{Addr: "localhost:6379", TTLSeconds: -1}
	assert.True(t, c.Enabled())
	assert.Error(t, c.Validate())
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := New(ctx, Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
