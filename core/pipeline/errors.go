package pipeline

import "errors"

var (
	// ErrDataUnavailable is returned when no trains remain after every
	// fallback was tried.
	ErrDataUnavailable = errors.New("no train data available")
	// ErrAlreadyMonitoring is returned by StartMonitoring and Train while
	// the monitoring loop runs.
	ErrAlreadyMonitoring = errors.New("monitoring already running")
)

// Cycle stages reported with failures.
const (
	StageFetch   = "fetch"
	StageIngest  = "ingest"
	StagePredict = "predict"
	StageSuggest = "suggest"
	StagePanic   = "panic"
)

// StageError tags an error with the cycle stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded in err, or "unknown".
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "unknown"
}
