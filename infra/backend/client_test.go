package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railflow/auth"
	"github.com/kilianp07/railflow/core/synthetic"
)

func healthServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != HealthPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchTrainList(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{"ok":true,"updatedAt":1710318600000,"trains":[
		{"id":"12301","name":"Rajdhani","category":"express","speed":64.5,"delay":3,"lat":22.58,"lon":88.34,"from":"HWH","to":"NDLS","status":"Running"},
		{"number":12302,"category":"vande","speed":"fast"}]}`)
	c := New(Config{BaseURL: srv.URL})

	feed, err := c.Fetch(context.Background())
	require.Error(t, err, "non-numeric speed is a schema error")

	srv = healthServer(t, http.StatusOK, `{"ok":true,"trains":[
		{"id":"12301","name":"Rajdhani","category":"express","speed":64.5,"delay":3},
		{"number":12302,"category":"vande","speed":80}]}`)
	c = New(Config{BaseURL: srv.URL + "/"})
	feed, err = c.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, feed.CountOnly)
	require.Len(t, feed.Trains, 2)
	assert.Equal(t, "12301", feed.Trains[0].Identifier())
	assert.Equal(t, "12302", feed.Trains[1].Identifier())
	require.NotNil(t, feed.Trains[0].Speed)
	assert.Equal(t, 64.5, *feed.Trains[0].Speed)
}

func TestFetchCountOnly(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{"ok":true,"updatedAt":1710318600000,"trains":20}`)
	feed, err := New(Config{BaseURL: srv.URL}).Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, feed.CountOnly)
	assert.Equal(t, 20, feed.Count)
	assert.Empty(t, feed.Trains)
}

func TestFetchHugeCountIsCapped(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{"ok":true,"trains":1e20}`)
	feed, err := New(Config{BaseURL: srv.URL}).Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, feed.CountOnly)
	assert.Equal(t, synthetic.SampleCap, feed.Count)
}

func TestFetchMissingTrains(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{"ok":true}`)
	feed, err := New(Config{BaseURL: srv.URL}).Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, feed.CountOnly)
	assert.Empty(t, feed.Trains)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		unreachable bool
	}{
		{"server error", http.StatusInternalServerError, `oops`, true},
		{"not json", http.StatusOK, `<html>`, false},
		{"string trains", http.StatusOK, `{"trains":"many"}`, false},
		{"negative count", http.StatusOK, `{"trains":-3}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := healthServer(t, tt.status, tt.body)
			_, err := New(Config{BaseURL: srv.URL}).Fetch(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.unreachable, errors.Is(err, ErrUnreachable))
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()
	_, err := New(Config{BaseURL: url}).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestFetchHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := New(Config{BaseURL: srv.URL}).Fetch(ctx)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchWithClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"abc","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"trains":3}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL, Auth: auth.Conf{ClientID: "id", ClientSecret: "s", TokenURL: srv.URL + "/token"}})
	feed, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, feed.Count)
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "http://localhost:5055", c.BaseURL)
	assert.Equal(t, 5*time.Second, c.Timeout())
	require.NoError(t, c.Validate())

	c.BaseURL = "localhost:5055"
	assert.Error(t, c.Validate())

	c = Config{BaseURL: "https://sim", Auth: auth.Conf{ClientID: "id"}}
	assert.Error(t, c.Validate())
}
