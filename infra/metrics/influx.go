package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/railflow/core/metrics"
	"github.com/kilianp07/railflow/infra/logger"
)

// InfluxSink writes pipeline events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCycle writes one prediction_cycle point per run.
func (s *InfluxSink) RecordCycle(ev coremetrics.CycleEvent) error {
	p := write.NewPointWithMeasurement("prediction_cycle").
		AddTag("source", ev.Source).
		AddTag("run_id", ev.RunID).
		AddField("trains", ev.Trains).
		AddField("congested", ev.Congested).
		AddField("high_risk", ev.HighRisk).
		AddField("congestion_rate", round3(ev.CongestionRate)).
		AddField("average_risk", round3(ev.AverageRisk)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordFallback writes a synthetic_fallback point.
func (s *InfluxSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	p := write.NewPointWithMeasurement("synthetic_fallback").
		AddTag("reason", ev.Reason).
		AddField("samples", ev.Samples).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordCycleError writes a cycle_error point.
func (s *InfluxSink) RecordCycleError(ev coremetrics.CycleErrorEvent) error {
	p := write.NewPointWithMeasurement("cycle_error").
		AddTag("stage", ev.Stage).
		AddTag("run_id", ev.RunID).
		AddField("error", ev.Err).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordTraining writes a model_training point.
func (s *InfluxSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	p := write.NewPointWithMeasurement("model_training").
		AddTag("family", ev.Family).
		AddField("samples", ev.Samples).
		AddField("cv_mean", round3(ev.CVMean)).
		AddField("train_accuracy", round3(ev.TrainAccuracy)).
		AddField("test_accuracy", round3(ev.TestAccuracy)).
		AddField("overfitting", ev.Overfitting).
		AddField("underfitting", ev.Underfitting).
		SetTime(ev.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
