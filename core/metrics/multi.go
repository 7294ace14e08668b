package metrics

import "errors"

// MultiSink fans events out to several sinks. Every sink is called even when
// an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) each(fn func(MetricsSink) error) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordCycle forwards cycle events.
func (m *MultiSink) RecordCycle(ev CycleEvent) error {
	return m.each(func(s MetricsSink) error { return s.RecordCycle(ev) })
}

// RecordFallback forwards fallback events.
func (m *MultiSink) RecordFallback(ev FallbackEvent) error {
	return m.each(func(s MetricsSink) error { return s.RecordFallback(ev) })
}

// RecordCycleError forwards cycle failures.
func (m *MultiSink) RecordCycleError(ev CycleErrorEvent) error {
	return m.each(func(s MetricsSink) error { return s.RecordCycleError(ev) })
}

// RecordTraining forwards training events.
func (m *MultiSink) RecordTraining(ev TrainingEvent) error {
	return m.each(func(s MetricsSink) error { return s.RecordTraining(ev) })
}
