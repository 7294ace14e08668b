package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/railflow/core/metrics"
	"github.com/kilianp07/railflow/core/model"
)

func TestPromSink_RecordCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	ev := coremetrics.CycleEvent{
		Source:         model.SourceBackend,
		Trains:         10,
		Congested:      4,
		HighRisk:       2,
		CongestionRate: 0.4,
		AverageRisk:    0.35,
		Actions:        map[model.Action]int{model.ActionReroute: 3, model.ActionWait: 1},
		Duration:       150 * time.Millisecond,
		Time:           time.Now(),
	}
	if err := sink.RecordCycle(ev); err != nil {
		t.Fatalf("record: %v", err)
	}

	expected := `
# HELP railflow_suggestions_total Mitigation suggestions emitted by action
# TYPE railflow_suggestions_total counter
railflow_suggestions_total{action="reroute"} 3
railflow_suggestions_total{action="wait"} 1
`
	if err := testutil.CollectAndCompare(sink.suggestions, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if v := testutil.ToFloat64(sink.rate); v != 0.4 {
		t.Errorf("congestion rate = %v", v)
	}
	if v := testutil.ToFloat64(sink.trains); v != 10 {
		t.Errorf("trains = %v", v)
	}
	if v := testutil.ToFloat64(sink.cycles.WithLabelValues(model.SourceBackend)); v != 1 {
		t.Errorf("cycles = %v", v)
	}
	if c := testutil.CollectAndCount(sink.duration); c != 1 {
		t.Errorf("duration not observed")
	}
}

func TestPromSink_FallbackErrorTraining(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	_ = sink.RecordFallback(coremetrics.FallbackEvent{Reason: coremetrics.FallbackCount, Samples: 20})
	_ = sink.RecordFallback(coremetrics.FallbackEvent{Reason: coremetrics.FallbackCount, Samples: 20})
	_ = sink.RecordCycleError(coremetrics.CycleErrorEvent{Stage: "predict"})
	_ = sink.RecordTraining(coremetrics.TrainingEvent{Family: "random_forest", TestAccuracy: 0.91})

	if v := testutil.ToFloat64(sink.fallbacks.WithLabelValues(coremetrics.FallbackCount)); v != 2 {
		t.Errorf("fallbacks = %v", v)
	}
	if v := testutil.ToFloat64(sink.errors.WithLabelValues("predict")); v != 1 {
		t.Errorf("errors = %v", v)
	}
	if v := testutil.ToFloat64(sink.accuracy.WithLabelValues("random_forest")); v != 0.91 {
		t.Errorf("accuracy = %v", v)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}
	_ = a.RecordFallback(coremetrics.FallbackEvent{Reason: "x"})
	_ = b.RecordFallback(coremetrics.FallbackEvent{Reason: "x"})
	if v := testutil.ToFloat64(b.fallbacks.WithLabelValues("x")); v != 2 {
		t.Errorf("collectors not shared: %v", v)
	}
}
