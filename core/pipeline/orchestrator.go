package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/railflow/core/classifier"
	"github.com/kilianp07/railflow/core/features"
	"github.com/kilianp07/railflow/core/logger"
	"github.com/kilianp07/railflow/core/metrics"
	"github.com/kilianp07/railflow/core/model"
	"github.com/kilianp07/railflow/core/monitoring"
	"github.com/kilianp07/railflow/core/optimizer"
	"github.com/kilianp07/railflow/core/synthetic"
	"github.com/kilianp07/railflow/internal/eventbus"
)

// State is the lifecycle stage of an Orchestrator.
type State int32

const (
	StateUnloaded State = iota
	StateLoaded
	StateMonitoring
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateMonitoring:
		return "monitoring"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Defaults applied by New to zero Options fields.
const (
	DefaultFetchTimeout    = 5 * time.Second
	DefaultFallbackSamples = 20
)

// Options configures an Orchestrator. Only Ingester is required.
type Options struct {
	// Source supplies live trains. Nil means every cycle uses synthetic
	// sample trains.
	Source          Source
	Ingester        *features.Ingester
	Sink            metrics.MetricsSink
	Bus             *eventbus.TypedBus[model.ResultEnvelope]
	Logger          logger.Logger
	Clock           Clock
	FetchTimeout    time.Duration
	FallbackSamples int
	TopN            int
	Seed            uint64
}

// Orchestrator serves a TrainedModel for one-shot predictions and periodic
// monitoring.
type Orchestrator struct {
	opts  Options
	model atomic.Pointer[classifier.TrainedModel]

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	state   State
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an Orchestrator in the Unloaded state.
func New(o Options) (*Orchestrator, error) {
	if o.Ingester == nil {
		return nil, errors.New("pipeline: ingester is required")
	}
	if o.Sink == nil {
		o.Sink = metrics.NopSink{}
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.FallbackSamples <= 0 {
		o.FallbackSamples = DefaultFallbackSamples
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	return &Orchestrator{
		opts: o,
		rng:  rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateMonitoring && !o.running.Load() {
		return StateStopped
	}
	return o.state
}

// Model returns the served model, or nil when none is loaded.
func (o *Orchestrator) Model() *classifier.TrainedModel { return o.model.Load() }

// Use serves m. It fails while monitoring.
func (o *Orchestrator) Use(m *classifier.TrainedModel) error {
	if m == nil {
		return classifier.ErrModelNotTrained
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateMonitoring && o.running.Load() {
		return ErrAlreadyMonitoring
	}
	o.model.Store(m)
	o.state = StateLoaded
	return nil
}

// Load reads the model from store. On failure the state is left unchanged.
func (o *Orchestrator) Load(ctx context.Context, store ModelStore) error {
	m, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	if err := o.Use(m); err != nil {
		return err
	}
	o.opts.Logger.Infof("model loaded: family=%s features=%d", m.Family(), len(m.FeatureNames()))
	return nil
}

// Train fits a model on n synthetic samples drawn with seed and serves it.
func (o *Orchestrator) Train(ctx context.Context, t classifier.Trainer, n int, seed uint64) (classifier.Report, error) {
	if o.State() == StateMonitoring {
		return classifier.Report{}, ErrAlreadyMonitoring
	}
	start := o.opts.Clock.Now()
	rep, m, err := t.Train(ctx, synthetic.Generate(n, seed))
	if err != nil {
		return rep, err
	}
	if err := o.Use(m); err != nil {
		return rep, err
	}
	ev := metrics.TrainingEvent{
		Family:        string(rep.Family),
		Samples:       rep.Samples,
		TrainAccuracy: rep.TrainAccuracy,
		TestAccuracy:  rep.TestAccuracy,
		Overfitting:   rep.Overfitting,
		Underfitting:  rep.Underfitting,
		Duration:      rep.Duration,
		Time:          start,
	}
	for _, cv := range rep.CV {
		if cv.Family == rep.Family {
			ev.CVMean = cv.Mean
		}
	}
	if err := o.opts.Sink.RecordTraining(ev); err != nil {
		o.opts.Logger.Warnf("record training: %v", err)
	}
	return rep, nil
}

// Save writes the served model to store.
func (o *Orchestrator) Save(ctx context.Context, store ModelStore) error {
	m := o.model.Load()
	if m == nil {
		return classifier.ErrModelNotTrained
	}
	if err := store.Save(ctx, m); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

// PredictOnce fetches trains from the source, falling back to synthetic
// samples, and predicts them.
func (o *Orchestrator) PredictOnce(ctx context.Context) (model.ResultEnvelope, error) {
	return o.predictOnce(ctx, uuid.NewString())
}

func (o *Orchestrator) predictOnce(ctx context.Context, runID string) (model.ResultEnvelope, error) {
	if o.model.Load() == nil {
		return model.ResultEnvelope{}, classifier.ErrModelNotTrained
	}
	raws, source := o.fetch(ctx)
	if len(raws) == 0 {
		return model.ResultEnvelope{}, stageErr(StageFetch, ErrDataUnavailable)
	}
	return o.predict(runID, raws, source)
}

// PredictRaw ingests and predicts trains supplied by the caller.
func (o *Orchestrator) PredictRaw(raws []model.RawTrain, source string) (model.ResultEnvelope, error) {
	if len(raws) == 0 {
		return model.ResultEnvelope{}, ErrDataUnavailable
	}
	return o.predict(uuid.NewString(), raws, source)
}

func (o *Orchestrator) predict(runID string, raws []model.RawTrain, source string) (model.ResultEnvelope, error) {
	recs, err := o.opts.Ingester.Ingest(raws)
	if err != nil {
		return model.ResultEnvelope{}, stageErr(StageIngest, err)
	}
	return o.PredictRecords(runID, recs, source)
}

// PredictRecords predicts already ingested records.
func (o *Orchestrator) PredictRecords(runID string, recs []model.TrainRecord, source string) (model.ResultEnvelope, error) {
	m := o.model.Load()
	if m == nil {
		return model.ResultEnvelope{}, classifier.ErrModelNotTrained
	}
	pred, err := m.Predict(recs)
	if err != nil {
		return model.ResultEnvelope{}, stageErr(StagePredict, err)
	}
	sugg, err := optimizer.Suggest(recs, pred.Labels)
	if err != nil {
		return model.ResultEnvelope{}, stageErr(StageSuggest, err)
	}
	return BuildEnvelope(runID, source, o.opts.Clock.Now(), recs, pred, sugg, o.opts.TopN), nil
}

func (o *Orchestrator) fetch(ctx context.Context) ([]model.RawTrain, string) {
	if o.opts.Source == nil {
		return o.samples(o.opts.FallbackSamples), model.SourceSynthetic
	}
	fctx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	defer cancel()
	feed, err := o.opts.Source.Fetch(fctx)
	switch {
	case err != nil:
		o.opts.Logger.Warnf("backend unreachable, using %d synthetic trains: %v", o.opts.FallbackSamples, err)
		return o.fallback(metrics.FallbackUnreachable, o.opts.FallbackSamples), model.SourceSynthetic
	case feed.CountOnly && feed.Count > 0:
		o.opts.Logger.Warnf("backend reported a train count (%d) instead of a list, generating sample trains", feed.Count)
		return o.fallback(metrics.FallbackCount, feed.Count), model.SourceSynthetic
	case len(feed.Trains) == 0:
		o.opts.Logger.Warnf("%v from backend, using %d synthetic trains", ErrDataUnavailable, o.opts.FallbackSamples)
		return o.fallback(metrics.FallbackEmpty, o.opts.FallbackSamples), model.SourceSynthetic
	}
	return feed.Trains, model.SourceBackend
}

func (o *Orchestrator) fallback(reason string, n int) []model.RawTrain {
	out := o.samples(n)
	ev := metrics.FallbackEvent{Reason: reason, Samples: len(out), Time: o.opts.Clock.Now()}
	if err := o.opts.Sink.RecordFallback(ev); err != nil {
		o.opts.Logger.Warnf("record fallback: %v", err)
	}
	return out
}

func (o *Orchestrator) samples(n int) []model.RawTrain {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return synthetic.SampleTrains(n, o.rng)
}

// StartMonitoring runs a prediction cycle every interval until
// StopMonitoring is called or ctx is done. It requires a loaded model.
func (o *Orchestrator) StartMonitoring(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("monitoring interval must be positive, got %s", interval)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.model.Load() == nil {
		return classifier.ErrModelNotTrained
	}
	if o.state == StateMonitoring && o.running.Load() {
		return ErrAlreadyMonitoring
	}
	if o.done != nil {
		<-o.done
	}
	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.cancel = cancel
	o.done = done
	o.state = StateMonitoring
	o.running.Store(true)
	go o.loop(wctx, interval, done)
	o.opts.Logger.Infof("monitoring started, interval=%s", interval)
	return nil
}

// StopMonitoring stops the loop and waits for the running cycle to finish.
// It is safe to call in any state.
func (o *Orchestrator) StopMonitoring() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.running.Store(false)
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	o.mu.Lock()
	if o.done == done {
		o.state = StateStopped
		o.cancel = nil
	}
	o.mu.Unlock()
	o.opts.Logger.Infof("monitoring stopped")
}

// Done returns a channel closed when the current monitoring loop exits, or
// nil when monitoring never started.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

func (o *Orchestrator) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	defer o.running.Store(false)
	for o.running.Load() {
		o.cycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-o.opts.Clock.After(interval):
		}
	}
}

// cycle runs one monitoring iteration. Failures and panics are reported and
// never escape.
func (o *Orchestrator) cycle(ctx context.Context) {
	runID := uuid.NewString()
	start := o.opts.Clock.Now()
	defer func() {
		if v := recover(); v != nil {
			monitoring.CapturePanic(v, map[string]string{"module": "monitor", "run_id": runID})
			o.failed(runID, stageErr(StagePanic, monitoring.PanicError(v)))
		}
	}()
	env, err := o.predictOnce(context.WithoutCancel(ctx), runID)
	if err != nil {
		monitoring.CaptureException(err, map[string]string{"module": "monitor", "run_id": runID, "stage": StageOf(err)})
		o.failed(runID, err)
		return
	}
	o.publish(env, o.opts.Clock.Now().Sub(start))
}

func (o *Orchestrator) failed(runID string, err error) {
	o.opts.Logger.Errorf("monitoring cycle %s failed: %v", runID, err)
	ev := metrics.CycleErrorEvent{RunID: runID, Stage: StageOf(err), Err: err.Error(), Time: o.opts.Clock.Now()}
	if rerr := o.opts.Sink.RecordCycleError(ev); rerr != nil {
		o.opts.Logger.Warnf("record cycle error: %v", rerr)
	}
}

func (o *Orchestrator) publish(env model.ResultEnvelope, d time.Duration) {
	o.opts.Logger.Infof("cycle %s: %d trains, %d congested (%s), %d high risk, top action %s",
		env.RunID, env.TotalTrains, env.CongestedTrains, env.Summary.CongestionRate, len(env.HighRiskTrains), env.Summary.TopAction)
	for i, t := range env.HighRiskTrains {
		if i == 3 {
			break
		}
		o.opts.Logger.Debugw("high risk train", map[string]any{
			"train_id":    t.TrainID,
			"category":    t.Category,
			"probability": t.CongestionProbability,
		})
	}
	if err := o.opts.Sink.RecordCycle(metrics.CycleFromEnvelope(env, d)); err != nil {
		o.opts.Logger.Warnf("record cycle: %v", err)
	}
	if o.opts.Bus != nil {
		o.opts.Bus.Publish(env)
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
