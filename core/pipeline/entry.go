package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kilianp07/railflow/core/features"
	"github.com/kilianp07/railflow/core/model"
	"github.com/kilianp07/railflow/core/monitoring"
)

// Error messages returned at the JSON boundary.
const (
	MsgNoData           = "No train data provided"
	MsgEmpty            = "Empty train data"
	MsgPredictionFailed = "ML prediction failed"
)

// ErrInvalidInput marks input that cannot be decoded into trains.
var ErrInvalidInput = errors.New("invalid train input")

// MaxInputBytes bounds the JSON accepted by the entry points.
const MaxInputBytes = 8 << 20

// RawPredictor predicts trains supplied by a caller. *Orchestrator
// implements it.
type RawPredictor interface {
	PredictRaw(raws []model.RawTrain, source string) (model.ResultEnvelope, error)
}

// Result is the outcome of the JSON entry point: exactly one of Envelope and
// Error is set.
type Result struct {
	Envelope *model.ResultEnvelope
	Error    *model.ErrorEnvelope
	// Cause is the error behind Error, if any.
	Cause error
}

// OK reports whether the prediction succeeded.
func (r Result) OK() bool { return r.Error == nil }

// InputError reports whether the failure is caused by the caller's input.
func (r Result) InputError() bool {
	if r.Error == nil {
		return false
	}
	switch r.Error.Error {
	case MsgNoData, MsgEmpty:
		return true
	}
	return errors.Is(r.Cause, ErrInvalidInput) || errors.Is(r.Cause, features.ErrSchemaMismatch)
}

// Value returns the object to serialize.
func (r Result) Value() any {
	if r.Error != nil {
		return r.Error
	}
	return r.Envelope
}

// Failure builds an error result.
func Failure(msg string, err error, now time.Time) Result {
	e := &model.ErrorEnvelope{Error: msg, Timestamp: now}
	if err != nil {
		e.Details = err.Error()
	}
	return Result{Error: e, Cause: err}
}

// PredictJSON decodes a JSON array of trains and predicts it. Every failure,
// including a panic, is converted to an error result.
func PredictJSON(p RawPredictor, data []byte, now func() time.Time) (res Result) {
	if now == nil {
		now = time.Now
	}
	defer func() {
		if v := recover(); v != nil {
			monitoring.CapturePanic(v, map[string]string{"module": "entry"})
			res = Failure(MsgPredictionFailed, monitoring.PanicError(v), now())
		}
	}()
	if len(bytes.TrimSpace(data)) == 0 {
		return Failure(MsgNoData, nil, now())
	}
	raws, err := features.DecodeTrains(data)
	if err != nil {
		return Failure(MsgPredictionFailed, fmt.Errorf("%w: %w", ErrInvalidInput, err), now())
	}
	if len(raws) == 0 {
		return Failure(MsgEmpty, nil, now())
	}
	env, err := p.PredictRaw(raws, model.SourceInput)
	if err != nil {
		return Failure(MsgPredictionFailed, err, now())
	}
	return Result{Envelope: &env}
}

// PredictReader reads at most MaxInputBytes from r and calls PredictJSON.
func PredictReader(p RawPredictor, r io.Reader, now func() time.Time) Result {
	if now == nil {
		now = time.Now
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return Failure(MsgPredictionFailed, fmt.Errorf("read input: %w", err), now())
	}
	if len(data) > MaxInputBytes {
		return Failure(MsgPredictionFailed, fmt.Errorf("%w: input exceeds %d bytes", ErrInvalidInput, MaxInputBytes), now())
	}
	return PredictJSON(p, data, now)
}
