// Package cache keeps the latest prediction envelope in Redis so dashboards
// can read it without touching the history store.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/railflow/core/model"
)

// DefaultKey is the Redis key holding the latest envelope.
const DefaultKey = "railflow:congestion:latest"

// Config holds Redis connection settings.
type Config struct {
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	Key        string `json:"key"`
	TTLSeconds int    `json:"ttl_seconds"`
	TLS        bool   `json:"tls"`
}

// Enabled reports whether a Redis address is configured.
func (c Config) Enabled() bool { return c.Addr != "" }

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.TTLSeconds == 0 {
		c.TTLSeconds = 300
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("cache: db must be >= 0")
	}
	if c.TTLSeconds < 0 {
		return fmt.Errorf("cache: ttl_seconds must be >= 0")
	}
	return nil
}

// TTL returns the key expiration. Zero keeps the key forever.
func (c Config) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// kv is the subset of the Redis client used by the cache.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// LatestCache stores the most recent ResultEnvelope under a single key.
type LatestCache struct {
	client kv
	key    string
	ttl    time.Duration
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, cfg Config) (*LatestCache, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newLatestCache(client, cfg), nil
}

func newLatestCache(client kv, cfg Config) *LatestCache {
	cfg.SetDefaults()
	return &LatestCache{client: client, key: cfg.Key, ttl: cfg.TTL()}
}

// SetLatest replaces the cached envelope.
func (c *LatestCache) SetLatest(ctx context.Context, env model.ResultEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return c.client.Set(ctx, c.key, data, c.ttl).Err()
}

// GetLatest returns the cached envelope. The boolean is false on a cache miss.
func (c *LatestCache) GetLatest(ctx context.Context) (model.ResultEnvelope, bool, error) {
	var env model.ResultEnvelope
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return env, false, nil
	}
	if err != nil {
		return env, false, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, false, fmt.Errorf("failed to unmarshal cached envelope: %w", err)
	}
	return env, true, nil
}

// HealthCheck pings Redis.
func (c *LatestCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *LatestCache) Close() error { return c.client.Close() }
