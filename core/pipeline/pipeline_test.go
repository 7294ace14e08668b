package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railflow/core/classifier"
	"github.com/kilianp07/railflow/core/features"
	"github.com/kilianp07/railflow/core/metrics"
	"github.com/kilianp07/railflow/core/model"
	"github.com/kilianp07/railflow/core/synthetic"
	"github.com/kilianp07/railflow/internal/eventbus"
)

var (
	modelOnce sync.Once
	testModel *classifier.TrainedModel
	modelErr  error
)

func trainedModel(t *testing.T) *classifier.TrainedModel {
	t.Helper()
	modelOnce.Do(func() {
		tr := classifier.Trainer{Params: classifier.Params{
			Trees:           15,
			MaxDepth:        6,
			MinSamplesSplit: 5,
			BoostingStages:  15,
			BoostingDepth:   3,
			LearningRate:    0.3,
			Folds:           3,
			TestFraction:    0.2,
			Seed:            3,
		}}
		_, testModel, modelErr = tr.Train(context.Background(), synthetic.Generate(1500, 11))
	})
	require.NoError(t, modelErr)
	return testModel
}

type fakeClock struct {
	now   time.Time
	ticks chan time.Time
	waits chan time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:   time.Date(2024, 3, 13, 8, 30, 0, 0, time.UTC),
		ticks: make(chan time.Time),
		waits: make(chan time.Duration, 16),
	}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waits <- d
	return c.ticks
}

type recordSink struct {
	metrics.NopSink
	mu        sync.Mutex
	cycles    []metrics.CycleEvent
	fallbacks []metrics.FallbackEvent
	failures  []metrics.CycleErrorEvent
	trainings []metrics.TrainingEvent
}

func (s *recordSink) RecordCycle(ev metrics.CycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, ev)
	return nil
}

func (s *recordSink) RecordFallback(ev metrics.FallbackEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbacks = append(s.fallbacks, ev)
	return nil
}

func (s *recordSink) RecordCycleError(ev metrics.CycleErrorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, ev)
	return nil
}

func (s *recordSink) RecordTraining(ev metrics.TrainingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainings = append(s.trainings, ev)
	return nil
}

func (s *recordSink) snapshot() ([]metrics.CycleEvent, []metrics.FallbackEvent, []metrics.CycleErrorEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]metrics.CycleEvent(nil), s.cycles...),
		append([]metrics.FallbackEvent(nil), s.fallbacks...),
		append([]metrics.CycleErrorEvent(nil), s.failures...)
}

func newOrchestrator(t *testing.T, src Source, opts ...func(*Options)) (*Orchestrator, *recordSink, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	sink := &recordSink{}
	p := features.DefaultPolicy()
	p.Now = clock.Now
	o := Options{
		Source:   src,
		Ingester: features.NewIngester(p),
		Sink:     sink,
		Clock:    clock,
		Seed:     5,
	}
	for _, fn := range opts {
		fn(&o)
	}
	orch, err := New(o)
	require.NoError(t, err)
	return orch, sink, clock
}

func loaded(t *testing.T, src Source, opts ...func(*Options)) (*Orchestrator, *recordSink, *fakeClock) {
	t.Helper()
	orch, sink, clock := newOrchestrator(t, src, opts...)
	require.NoError(t, orch.Use(trainedModel(t)))
	return orch, sink, clock
}

func feed(trains []model.RawTrain) Source {
	return SourceFunc(func(context.Context) (Feed, error) { return Feed{Trains: trains}, nil })
}

func speed(v float64) *float64 { return &v }

func TestNewRequiresIngester(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestPredictOnceRequiresModel(t *testing.T) {
	orch, _, _ := newOrchestrator(t, nil)
	assert.Equal(t, StateUnloaded, orch.State())
	_, err := orch.PredictOnce(context.Background())
	assert.ErrorIs(t, err, classifier.ErrModelNotTrained)
}

func TestPredictOnceBackendTrains(t *testing.T) {
	trains := []model.RawTrain{
		{ID: "12301", Name: "Rajdhani", Category: "express", Speed: speed(15), Delay: speed(25)},
		{ID: "12302", Category: "express", Speed: speed(90)},
	}
	orch, sink, clock := loaded(t, feed(trains))

	env, err := orch.PredictOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SourceBackend, env.Source)
	assert.Equal(t, 2, env.TotalTrains)
	assert.Len(t, env.CongestionPredictions, 2)
	assert.Len(t, env.CongestionProbabilities, 2)
	assert.Equal(t, clock.now, env.Timestamp)
	assert.NotEmpty(t, env.RunID)
	_, fallbacks, _ := sink.snapshot()
	assert.Empty(t, fallbacks)
}

func TestPredictOnceCountOnlyFallback(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  int
	}{
		{"twenty", 20, 20},
		{"capped", 80, synthetic.SampleCap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := SourceFunc(func(context.Context) (Feed, error) {
				return Feed{CountOnly: true, Count: tt.count}, nil
			})
			orch, sink, _ := loaded(t, src)
			env, err := orch.PredictOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.TotalTrains)
			assert.Equal(t, model.SourceSynthetic, env.Source)
			_, fallbacks, _ := sink.snapshot()
			require.Len(t, fallbacks, 1)
			assert.Equal(t, metrics.FallbackCount, fallbacks[0].Reason)
			assert.Equal(t, tt.want, fallbacks[0].Samples)
		})
	}
}

func TestPredictOnceUnreachableFallback(t *testing.T) {
	src := SourceFunc(func(context.Context) (Feed, error) { return Feed{}, errors.New("connection refused") })
	orch, sink, _ := loaded(t, src)
	env, err := orch.PredictOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultFallbackSamples, env.TotalTrains)
	_, fallbacks, _ := sink.snapshot()
	require.Len(t, fallbacks, 1)
	assert.Equal(t, metrics.FallbackUnreachable, fallbacks[0].Reason)
}

func TestPredictOnceFetchTimeout(t *testing.T) {
	src := SourceFunc(func(ctx context.Context) (Feed, error) {
		<-ctx.Done()
		return Feed{}, ctx.Err()
	})
	orch, _, _ := loaded(t, src, func(o *Options) {
		o.FetchTimeout = 20 * time.Millisecond
		o.FallbackSamples = 7
	})
	env, err := orch.PredictOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, env.TotalTrains)
}

func TestPredictOnceEmptyFallback(t *testing.T) {
	orch, sink, _ := loaded(t, feed(nil))
	env, err := orch.PredictOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultFallbackSamples, env.TotalTrains)
	_, fallbacks, _ := sink.snapshot()
	require.Len(t, fallbacks, 1)
	assert.Equal(t, metrics.FallbackEmpty, fallbacks[0].Reason)
}

func TestPredictOnceZeroCountFallsBackToSamples(t *testing.T) {
	src := SourceFunc(func(context.Context) (Feed, error) { return Feed{CountOnly: true}, nil })
	orch, sink, _ := loaded(t, src)
	env, err := orch.PredictOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultFallbackSamples, env.TotalTrains)
	assert.Equal(t, model.SourceSynthetic, env.Source)
	_, fallbacks, _ := sink.snapshot()
	require.Len(t, fallbacks, 1)
	assert.Equal(t, metrics.FallbackEmpty, fallbacks[0].Reason)
}

func TestPredictOnceWithoutSourceUsesSamples(t *testing.T) {
	orch, sink, _ := loaded(t, nil)
	env, err := orch.PredictOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultFallbackSamples, env.TotalTrains)
	assert.Equal(t, model.SourceSynthetic, env.Source)
	_, fallbacks, _ := sink.snapshot()
	assert.Empty(t, fallbacks)
}

func TestPredictRaw(t *testing.T) {
	orch, _, _ := loaded(t, nil)

	_, err := orch.PredictRaw(nil, model.SourceInput)
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = orch.PredictRaw([]model.RawTrain{{ID: "X"}}, model.SourceInput)
	assert.ErrorIs(t, err, features.ErrSchemaMismatch)
	assert.Equal(t, StageIngest, StageOf(err))

	env, err := orch.PredictRaw([]model.RawTrain{{ID: "X", Speed: speed(70)}}, model.SourceInput)
	require.NoError(t, err)
	assert.Equal(t, model.SourceInput, env.Source)
}

func TestPredictRecordsScenario(t *testing.T) {
	orch, _, _ := loaded(t, nil)
	recs := []model.TrainRecord{
		{ID: "C1", Category: model.CategoryFreight, Station: "HWH", StationClass: model.StationMajor,
			Speed: 15, Occupancy: 3, Signal: model.SignalRed, Delay: 25, DistanceToNext: 3000,
			DistanceToDestination: 20000, TimeToClear: model.TimeToClear(3000, 15), HourOfDay: 12, DayOfWeek: 2},
		{ID: "G1", Category: model.CategoryExpress, Station: "HWH", StationClass: model.StationMajor,
			Speed: 80, Signal: model.SignalGreen, DistanceToNext: 2000, DistanceToDestination: 20000,
			TimeToClear: model.TimeToClear(2000, 80), HourOfDay: 12, DayOfWeek: 2},
	}
	env, err := orch.PredictRecords("run-1", recs, model.SourceInput)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, env.CongestionPredictions)
	require.Len(t, env.OptimizationSuggestions, 1)
	assert.Equal(t, "C1", env.OptimizationSuggestions[0].TrainID)
	assert.Equal(t, model.ActionReroute, env.OptimizationSuggestions[0].Action)
	assert.Equal(t, model.ActionReroute, env.Summary.TopAction)
	assert.Equal(t, "50.0%", env.Summary.CongestionRate)
}

type memStore struct {
	m   *classifier.TrainedModel
	err error
}

func (s *memStore) Save(_ context.Context, m *classifier.TrainedModel) error {
	if s.err != nil {
		return s.err
	}
	s.m = m
	return nil
}

func (s *memStore) Load(context.Context) (*classifier.TrainedModel, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.m == nil {
		return nil, errors.New("no model saved")
	}
	return s.m, nil
}

func TestLoadAndSave(t *testing.T) {
	orch, _, _ := newOrchestrator(t, nil)
	require.ErrorIs(t, orch.Save(context.Background(), &memStore{}), classifier.ErrModelNotTrained)

	broken := &memStore{err: errors.New("corrupt blob")}
	require.Error(t, orch.Load(context.Background(), broken))
	assert.Equal(t, StateUnloaded, orch.State())

	store := &memStore{m: trainedModel(t)}
	require.NoError(t, orch.Load(context.Background(), store))
	assert.Equal(t, StateLoaded, orch.State())
	assert.Same(t, trainedModel(t), orch.Model())

	out := &memStore{}
	require.NoError(t, orch.Save(context.Background(), out))
	assert.Same(t, orch.Model(), out.m)
}

func TestTrainServesModel(t *testing.T) {
	orch, sink, _ := newOrchestrator(t, nil)
	tr := classifier.Trainer{Params: classifier.Params{Trees: 5, MaxDepth: 4, BoostingStages: 5, BoostingDepth: 2, Folds: 2, Seed: 1}}
	rep, err := orch.Train(context.Background(), tr, 400, 9)
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, orch.State())
	assert.Equal(t, 400, rep.Samples)
	require.Len(t, sink.trainings, 1)
	assert.Equal(t, string(rep.Family), sink.trainings[0].Family)
}

func TestStartMonitoringRequiresModel(t *testing.T) {
	orch, _, _ := newOrchestrator(t, nil)
	err := orch.StartMonitoring(context.Background(), time.Second)
	assert.ErrorIs(t, err, classifier.ErrModelNotTrained)
	assert.Equal(t, StateUnloaded, orch.State())
}

func TestStopMonitoringFromAnyState(t *testing.T) {
	orch, _, _ := newOrchestrator(t, nil)
	orch.StopMonitoring()
	assert.Equal(t, StateUnloaded, orch.State())
	require.NoError(t, orch.Use(trainedModel(t)))
	orch.StopMonitoring()
	assert.Equal(t, StateLoaded, orch.State())
}

func TestMonitoringLifecycle(t *testing.T) {
	bus := eventbus.NewTyped[model.ResultEnvelope]()
	defer bus.Close()
	sub := bus.Subscribe()
	orch, sink, clock := loaded(t, feed([]model.RawTrain{{ID: "A", Speed: speed(12)}}), func(o *Options) { o.Bus = bus })

	require.NoError(t, orch.StartMonitoring(context.Background(), 30*time.Second))
	assert.Equal(t, StateMonitoring, orch.State())
	assert.ErrorIs(t, orch.StartMonitoring(context.Background(), time.Second), ErrAlreadyMonitoring)
	_, err := orch.Train(context.Background(), classifier.Trainer{}, 10, 1)
	assert.ErrorIs(t, err, ErrAlreadyMonitoring)

	assert.Equal(t, 30*time.Second, <-clock.waits)
	env := <-sub
	assert.Equal(t, 1, env.TotalTrains)

	clock.ticks <- clock.now
	<-clock.waits
	<-sub

	orch.StopMonitoring()
	assert.Equal(t, StateStopped, orch.State())
	cycles, _, failures := sink.snapshot()
	assert.Len(t, cycles, 2)
	assert.Empty(t, failures)

	require.NoError(t, orch.StartMonitoring(context.Background(), time.Minute))
	<-clock.waits
	orch.StopMonitoring()
	cycles, _, _ = sink.snapshot()
	assert.Len(t, cycles, 3)
}

func TestMonitoringSurvivesPanics(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) (Feed, error) {
		if calls.Add(1) == 1 {
			panic("backend decoder exploded")
		}
		return Feed{Trains: []model.RawTrain{{ID: "B", Speed: speed(60)}}}, nil
	})
	orch, sink, clock := loaded(t, src)

	require.NoError(t, orch.StartMonitoring(context.Background(), time.Second))
	<-clock.waits
	clock.ticks <- clock.now
	<-clock.waits
	orch.StopMonitoring()

	cycles, _, failures := sink.snapshot()
	require.Len(t, failures, 1)
	assert.Equal(t, StagePanic, failures[0].Stage)
	assert.Contains(t, failures[0].Err, "backend decoder exploded")
	assert.Len(t, cycles, 1)
}

func TestMonitoringStopsWithParentContext(t *testing.T) {
	orch, _, clock := loaded(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, orch.StartMonitoring(ctx, time.Second))
	<-clock.waits
	cancel()
	<-orch.Done()
	assert.Equal(t, StateStopped, orch.State())
	orch.StopMonitoring()
	assert.Equal(t, StateStopped, orch.State())
}

func TestStartMonitoringRejectsInterval(t *testing.T) {
	orch, _, _ := loaded(t, nil)
	require.Error(t, orch.StartMonitoring(context.Background(), 0))
}
