// Package backend fetches live trains from the simulation backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/railflow/auth"
	"github.com/kilianp07/railflow/core/features"
	"github.com/kilianp07/railflow/core/pipeline"
	"github.com/kilianp07/railflow/core/synthetic"
	"github.com/kilianp07/railflow/infra/logger"
)

// ErrUnreachable wraps transport failures and non-200 responses.
var ErrUnreachable = errors.New("backend unreachable")

// HealthPath is the endpoint that reports the trains currently simulated.
const HealthPath = "/api/health"

// Config defines how to reach the backend.
type Config struct {
	BaseURL        string    `json:"base_url"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	Auth           auth.Conf `json:"auth"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:5055"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("backend base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	if c.Auth.Enabled() && c.Auth.TokenURL == "" {
		return fmt.Errorf("backend auth token_url is required when client_id is set")
	}
	return nil
}

// Timeout returns the per-request timeout.
func (c Config) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

// Client implements pipeline.Source over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	creds   *auth.ClientCred
	log     logger.Logger
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	cfg.SetDefaults()
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout()},
		log:     logger.New("backend"),
	}
	if cfg.Auth.Enabled() {
		c.creds = auth.NewClientCred(cfg.Auth)
	}
	return c
}

var _ pipeline.Source = (*Client)(nil)

type healthResponse struct {
	OK        bool            `json:"ok"`
	UpdatedAt int64           `json:"updatedAt"`
	Trains    json.RawMessage `json:"trains"`
}

// Fetch reads the trains reported by the health endpoint. The backend may
// report a bare count instead of a list; the Feed then has CountOnly set.
func (c *Client) Fetch(ctx context.Context) (pipeline.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return pipeline.Feed{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.creds != nil {
		if err := c.creds.SetAuthHeader(ctx, req); err != nil {
			return pipeline.Feed{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return pipeline.Feed{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return pipeline.Feed{}, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeline.Feed{}, fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}
	var hr healthResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return pipeline.Feed{}, fmt.Errorf("decode health response: %w", err)
	}
	feed, err := decodeTrains(hr.Trains)
	if err != nil {
		return pipeline.Feed{}, err
	}
	c.log.Debugf("fetched %d trains (count only: %t)", len(feed.Trains), feed.CountOnly)
	return feed, nil
}

func decodeTrains(raw json.RawMessage) (pipeline.Feed, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return pipeline.Feed{}, nil
	}
	switch raw[0] {
	case '[':
		trains, err := features.DecodeTrains(raw)
		if err != nil {
			return pipeline.Feed{}, fmt.Errorf("decode trains: %w", err)
		}
		return pipeline.Feed{Trains: trains}, nil
	default:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return pipeline.Feed{}, fmt.Errorf("trains is neither a list nor a count: %s", raw)
		}
		if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return pipeline.Feed{}, fmt.Errorf("invalid train count %v", n)
		}
		return pipeline.Feed{CountOnly: true, Count: int(math.Min(n, synthetic.SampleCap))}, nil
	}
}
