package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/railflow/core/metrics"
)

// PromSink records pipeline events in Prometheus collectors.
type PromSink struct {
	cycles      *prometheus.CounterVec
	trains      prometheus.Counter
	congested   prometheus.Gauge
	rate        prometheus.Gauge
	risk        prometheus.Gauge
	highRisk    prometheus.Gauge
	suggestions *prometheus.CounterVec
	duration    prometheus.Histogram
	fallbacks   *prometheus.CounterVec
	errors      *prometheus.CounterVec
	accuracy    *prometheus.GaugeVec
	trainings   *prometheus.CounterVec
}

// NewPromSink registers the collectors on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the collectors on reg. Collectors already
// registered by an earlier sink are reused. A nil registerer defaults to the
// global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.cycles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railflow_prediction_cycles_total",
		Help: "Prediction runs by data source",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if s.trains, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "railflow_trains_evaluated_total",
		Help: "Trains scored by the classifier",
	})); err != nil {
		return nil, err
	}
	if s.congested, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railflow_congested_trains",
		Help: "Trains predicted congested in the last run",
	})); err != nil {
		return nil, err
	}
	if s.rate, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railflow_congestion_rate",
		Help: "Share of trains predicted congested in the last run",
	})); err != nil {
		return nil, err
	}
	if s.risk, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railflow_average_risk",
		Help: "Mean congestion probability of the last run",
	})); err != nil {
		return nil, err
	}
	if s.highRisk, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railflow_high_risk_trains",
		Help: "High-risk trains in the last run",
	})); err != nil {
		return nil, err
	}
	if s.suggestions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railflow_suggestions_total",
		Help: "Mitigation suggestions emitted by action",
	}, []string{"action"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "railflow_prediction_cycle_seconds",
		Help:    "Duration of a prediction run",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.fallbacks, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railflow_synthetic_fallbacks_total",
		Help: "Runs that fell back to synthetic sample trains",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if s.errors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railflow_cycle_errors_total",
		Help: "Monitoring cycles that failed",
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	if s.accuracy, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "railflow_model_test_accuracy",
		Help: "Held-out accuracy of the last trained model",
	}, []string{"family"})); err != nil {
		return nil, err
	}
	if s.trainings, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railflow_trainings_total",
		Help: "Training runs by served family",
	}, []string{"family"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordCycle updates the run counters and last-run gauges.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(ev.Source).Inc()
	s.trains.Add(float64(ev.Trains))
	s.congested.Set(float64(ev.Congested))
	s.rate.Set(ev.CongestionRate)
	s.risk.Set(ev.AverageRisk)
	s.highRisk.Set(float64(ev.HighRisk))
	for action, n := range ev.Actions {
		s.suggestions.WithLabelValues(string(action)).Add(float64(n))
	}
	s.duration.Observe(ev.Duration.Seconds())
	return nil
}

// RecordFallback counts synthetic fallbacks by reason.
func (s *PromSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	s.fallbacks.WithLabelValues(ev.Reason).Inc()
	return nil
}

// RecordCycleError counts failed cycles by stage.
func (s *PromSink) RecordCycleError(ev coremetrics.CycleErrorEvent) error {
	s.errors.WithLabelValues(ev.Stage).Inc()
	return nil
}

// RecordTraining exposes the accuracy of the freshly trained model.
func (s *PromSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	s.accuracy.WithLabelValues(ev.Family).Set(ev.TestAccuracy)
	s.trainings.WithLabelValues(ev.Family).Inc()
	return nil
}
