// Package congestion exposes prediction results and the prediction entry
// point over HTTP.
package congestion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/railflow/core/model"
	"github.com/kilianp07/railflow/core/pipeline"
	"github.com/kilianp07/railflow/infra/resultstore"
)

// Routes.
const (
	LatestPath  = "/api/congestion/latest"
	HistoryPath = "/api/congestion/history"
	PredictPath = "/api/congestion/predict"
)

// History is the read side of the result store.
type History interface {
	Query(ctx context.Context, q resultstore.Query) ([]model.ResultEnvelope, error)
	Latest(ctx context.Context) (model.ResultEnvelope, error)
}

// LatestCache serves the most recent envelope without reading the history.
type LatestCache interface {
	GetLatest(ctx context.Context) (model.ResultEnvelope, bool, error)
}

// NewLatestHandler returns the most recent envelope via GET /api/congestion/latest.
// The cache is consulted first when non-nil; misses and cache errors fall
// through to the history.
func NewLatestHandler(h History, c LatestCache) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if c != nil {
			if env, ok, err := c.GetLatest(r.Context()); err == nil && ok {
				writeJSON(w, http.StatusOK, env)
				return
			}
		}
		env, err := h.Latest(r.Context())
		if errors.Is(err, resultstore.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, env)
	})
}

// NewHistoryHandler queries stored envelopes via
// GET /api/congestion/history?from=&to=&train_id=&limit=. Times are RFC3339.
func NewHistoryHandler(h History) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, err := h.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if res == nil {
			res = []model.ResultEnvelope{}
		}
		writeJSON(w, http.StatusOK, res)
	})
}

func parseQuery(r *http.Request) (resultstore.Query, error) {
	v := r.URL.Query()
	q := resultstore.Query{TrainID: v.Get("train_id")}
	var err error
	if s := v.Get("from"); s != "" {
		if q.From, err = time.Parse(time.RFC3339, s); err != nil {
			return q, errors.New("invalid from: expected RFC3339")
		}
	}
	if s := v.Get("to"); s != "" {
		if q.To, err = time.Parse(time.RFC3339, s); err != nil {
			return q, errors.New("invalid to: expected RFC3339")
		}
	}
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil || q.Limit < 0 {
			return q, errors.New("invalid limit")
		}
	}
	return q, nil
}

// NewPredictHandler predicts a JSON array of trains posted to
// /api/congestion/predict. The response follows the stdin entry point: a
// result envelope, or {error, details, timestamp}.
func NewPredictHandler(p pipeline.RawPredictor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		res := pipeline.PredictReader(p, r.Body, nil)
		status := http.StatusOK
		switch {
		case res.InputError():
			status = http.StatusBadRequest
		case !res.OK():
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, res.Value())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
