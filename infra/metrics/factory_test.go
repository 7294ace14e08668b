package metrics

import (
	"testing"

	"github.com/kilianp07/railflow/core/factory"
	coremetrics "github.com/kilianp07/railflow/core/metrics"
)

func TestMetricsFactory_Builtins(t *testing.T) {
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if _, ok := s.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}
	s, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	if _, ok := s.(*coremetrics.MultiSink); !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	for _, name := range []string{"nop", "prometheus", "influx"} {
		found := false
		for _, n := range coremetrics.SinkTypes() {
			found = found || n == name
		}
		if !found {
			t.Errorf("sink %q not registered", name)
		}
	}
}
