package metrics

import (
	"time"

	"github.com/kilianp07/railflow/core/model"
)

// CycleEvent summarizes one prediction run.
type CycleEvent struct {
	RunID          string
	Source         string
	Trains         int
	Congested      int
	HighRisk       int
	CongestionRate float64
	AverageRisk    float64
	Actions        map[model.Action]int
	Duration       time.Duration
	Time           time.Time
}

// CycleRecorder records prediction runs.
type CycleRecorder interface {
	RecordCycle(ev CycleEvent) error
}

// Fallback reasons.
const (
	FallbackUnreachable = "backend_unreachable"
	FallbackCount       = "integer_count"
	FallbackEmpty       = "empty_input"
)

// FallbackEvent records a switch to synthetic sample trains.
type FallbackEvent struct {
	Reason  string
	Samples int
	Time    time.Time
}

// FallbackRecorder records synthetic fallbacks.
type FallbackRecorder interface {
	RecordFallback(ev FallbackEvent) error
}

// CycleErrorEvent records a monitoring cycle that failed.
type CycleErrorEvent struct {
	RunID string
	Stage string
	Err   string
	Time  time.Time
}

// CycleErrorRecorder records failed cycles.
type CycleErrorRecorder interface {
	RecordCycleError(ev CycleErrorEvent) error
}

// TrainingEvent summarizes a training run.
type TrainingEvent struct {
	Family        string
	Samples       int
	CVMean        float64
	TrainAccuracy float64
	TestAccuracy  float64
	Overfitting   bool
	Underfitting  bool
	Duration      time.Duration
	Time          time.Time
}

// TrainingRecorder records training runs.
type TrainingRecorder interface {
	RecordTraining(ev TrainingEvent) error
}

// MetricsSink records pipeline events for observability purposes.
type MetricsSink interface {
	CycleRecorder
	FallbackRecorder
	CycleErrorRecorder
	TrainingRecorder
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(CycleEvent) error           { return nil }
func (NopSink) RecordFallback(FallbackEvent) error     { return nil }
func (NopSink) RecordCycleError(CycleErrorEvent) error { return nil }
func (NopSink) RecordTraining(TrainingEvent) error     { return nil }

// CycleFromEnvelope builds the cycle event of a result envelope.
func CycleFromEnvelope(env model.ResultEnvelope, d time.Duration) CycleEvent {
	actions := map[model.Action]int{}
	for _, s := range env.OptimizationSuggestions {
		actions[s.Action]++
	}
	return CycleEvent{
		RunID:          env.RunID,
		Source:         env.Source,
		Trains:         env.TotalTrains,
		Congested:      env.CongestedTrains,
		HighRisk:       len(env.HighRiskTrains),
		CongestionRate: env.CongestionRate,
		AverageRisk:    env.Summary.AverageRisk,
		Actions:        actions,
		Duration:       d,
		Time:           env.Timestamp,
	}
}
