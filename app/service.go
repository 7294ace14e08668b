// Package app wires the prediction pipeline to its collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/railflow/api/congestion"
	"github.com/kilianp07/railflow/config"
	"github.com/kilianp07/railflow/core/classifier"
	"github.com/kilianp07/railflow/core/features"
	coremetrics "github.com/kilianp07/railflow/core/metrics"
	"github.com/kilianp07/railflow/core/model"
	"github.com/kilianp07/railflow/core/monitoring"
	coremqtt "github.com/kilianp07/railflow/core/mqtt"
	"github.com/kilianp07/railflow/core/pipeline"
	"github.com/kilianp07/railflow/infra/backend"
	"github.com/kilianp07/railflow/infra/cache"
	"github.com/kilianp07/railflow/infra/logger"
	"github.com/kilianp07/railflow/infra/metrics"
	"github.com/kilianp07/railflow/infra/modelstore"
	infamon "github.com/kilianp07/railflow/infra/monitoring"
	"github.com/kilianp07/railflow/infra/mqtt"
	"github.com/kilianp07/railflow/infra/resultstore"
	"github.com/kilianp07/railflow/internal/eventbus"
)

// consumerTimeout bounds the side effects of one published envelope.
const consumerTimeout = 5 * time.Second

// Option customizes a Service.
type Option func(*options)

type options struct {
	source    pipeline.Source
	clock     pipeline.Clock
	publisher coremqtt.ResultPublisher
}

// WithSource replaces the backend client.
func WithSource(s pipeline.Source) Option { return func(o *options) { o.source = s } }

// WithClock replaces the system clock of the orchestrator.
func WithClock(c pipeline.Clock) Option { return func(o *options) { o.clock = c } }

// WithPublisher replaces the MQTT publisher.
func WithPublisher(p coremqtt.ResultPublisher) Option { return func(o *options) { o.publisher = p } }

// Service runs the monitoring loop and fans its results out to the history
// store, the Redis cache, MQTT and the metrics sinks.
type Service struct {
	cfg       *config.Config
	orch      *pipeline.Orchestrator
	bus       *eventbus.TypedBus[model.ResultEnvelope]
	history   resultstore.Store
	models    modelstore.Store
	latest    *cache.LatestCache
	publisher coremqtt.ResultPublisher
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (svc *Service, err error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	mon, err := infamon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(mon)

	s := &Service{cfg: cfg, bus: eventbus.NewTyped[model.ResultEnvelope](), log: logger.New("service")}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if s.history, err = resultstore.New(cfg.Storage); err != nil {
		return nil, fmt.Errorf("result store: %w", err)
	}
	if s.models, err = modelstore.New(cfg.Model.Store()); err != nil {
		return nil, fmt.Errorf("model store: %w", err)
	}
	if cfg.Cache.Enabled() {
		if s.latest, err = cache.New(ctx, cfg.Cache); err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
	}
	s.publisher = o.publisher
	if s.publisher == nil && cfg.MQTT.Enabled() {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		s.publisher = pub
	}
	source := o.source
	if source == nil {
		source = backend.New(cfg.Backend)
	}
	s.orch, err = NewOrchestrator(cfg, pipeline.Options{Source: source, Sink: sink, Bus: s.bus, Clock: o.clock})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewOrchestrator builds an orchestrator with the ingestion policy and
// monitoring settings of cfg. Fields already set in o are kept.
func NewOrchestrator(cfg *config.Config, o pipeline.Options) (*pipeline.Orchestrator, error) {
	if o.Ingester == nil {
		p := cfg.Ingestion.Policy()
		if o.Clock != nil {
			p.Now = o.Clock.Now
		}
		o.Ingester = features.NewIngester(p)
	}
	if o.Logger == nil {
		o.Logger = logger.New("pipeline")
	}
	if o.FetchTimeout == 0 {
		o.FetchTimeout = cfg.Backend.Timeout()
	}
	if o.TopN == 0 {
		o.TopN = cfg.Monitor.TopN
	}
	if o.FallbackSamples == 0 {
		o.FallbackSamples = cfg.Monitor.FallbackSamples
	}
	if o.Seed == 0 {
		o.Seed = cfg.Monitor.Seed
	}
	return pipeline.New(o)
}

// NewTrainer returns a trainer using the training parameters of cfg.
func NewTrainer(cfg *config.Config) classifier.Trainer {
	return classifier.Trainer{Params: cfg.Model.Training, Log: logger.New("classifier")}
}

// Orchestrator returns the pipeline orchestrator.
func (s *Service) Orchestrator() *pipeline.Orchestrator { return s.orch }

// History returns the result history store.
func (s *Service) History() resultstore.Store { return s.history }

// Models returns the model store.
func (s *Service) Models() modelstore.Store { return s.models }

// Handler returns the congestion API.
func (s *Service) Handler() http.Handler {
	var latest congestion.LatestCache
	if s.latest != nil {
		latest = s.latest
	}
	return congestion.NewMux(s.history, latest, s.orch, s.cfg.API.Token)
}

// Run loads the model, starts the servers and monitors until ctx is
// canceled. A missing or corrupt model is fatal.
func (s *Service) Run(ctx context.Context) error {
	if err := s.orch.Load(ctx, s.models); err != nil {
		return fmt.Errorf("%w (run the train command first)", err)
	}
	// The consumer stops after monitoring so the envelopes of the last cycle
	// are still handled.
	consumeCtx, stopConsume := context.WithCancel(context.Background())
	consumed := eventbus.Consume(consumeCtx, s.bus, s.handle)
	defer func() {
		stopConsume()
		<-consumed
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error { return metrics.StartPromServer(gctx, addr) })
	}
	if addr := s.cfg.API.Addr; addr != "" {
		g.Go(func() error { return congestion.Serve(gctx, addr, s.Handler()) })
	}
	if err := s.orch.StartMonitoring(gctx, s.cfg.Monitor.Interval()); err != nil {
		cancel()
		return errors.Join(err, g.Wait())
	}
	<-gctx.Done()
	s.orch.StopMonitoring()
	return g.Wait()
}

// handle applies the side effects of one envelope. Failures are reported and
// never stop the consumer.
func (s *Service) handle(env model.ResultEnvelope) {
	ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
	defer cancel()
	if err := s.history.Append(ctx, env); err != nil {
		s.report("history", env, err)
	}
	if s.latest != nil {
		if err := s.latest.SetLatest(ctx, env); err != nil {
			s.report("cache", env, err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishResult(env); err != nil {
			s.report("mqtt", env, err)
		}
	}
}

func (s *Service) report(target string, env model.ResultEnvelope, err error) {
	logger.With(s.log, "run_id", env.RunID).Errorf("%s: %v", target, err)
	monitoring.CaptureException(err, map[string]string{"module": "consumer", "target": target, "run_id": env.RunID})
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.orch != nil {
		s.orch.StopMonitoring()
	}
	s.bus.Close()
	if p, ok := s.publisher.(interface{ Disconnect() }); ok {
		p.Disconnect()
	}
	if s.latest != nil {
		errs = append(errs, s.latest.Close())
	}
	if s.history != nil {
		errs = append(errs, s.history.Close())
	}
	if s.models != nil {
		errs = append(errs, s.models.Close())
	}
	monitoring.Flush(2 * time.Second)
	return errors.Join(errs...)
}
