package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/railflow/core/classifier"
	"github.com/kilianp07/railflow/core/features"
	"github.com/kilianp07/railflow/core/model"
	"github.com/kilianp07/railflow/core/pipeline"
	"github.com/kilianp07/railflow/infra/modelstore"
)

// ModelConfig defines where the model lives and how it is trained.
type ModelConfig struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
	Name    string `json:"name"`
	// Samples is the number of synthetic records drawn for training.
	Samples  int               `json:"samples"`
	Seed     uint64            `json:"seed"`
	Training classifier.Params `json:"training"`
}

// SetDefaults applies sane defaults.
func (c *ModelConfig) SetDefaults() {
	st := c.Store()
	st.SetDefaults()
	c.Backend, c.Path, c.Name = st.Backend, st.Path, st.Name
	if c.Samples <= 0 {
		c.Samples = 10000
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.Training.Seed == 0 {
		c.Training.Seed = c.Seed
	}
}

// Validate checks mandatory fields.
func (c ModelConfig) Validate() error {
	if err := c.Store().Validate(); err != nil {
		return err
	}
	if c.Samples < 100 {
		return fmt.Errorf("samples must be >= 100, got %d", c.Samples)
	}
	if c.Training.LearningRate < 0 || c.Training.LearningRate > 1 {
		return fmt.Errorf("training.learning_rate must be in (0, 1]")
	}
	if c.Training.TestFraction < 0 || c.Training.TestFraction >= 1 {
		return fmt.Errorf("training.test_fraction must be in (0, 1)")
	}
	return nil
}

// Store returns the model store settings.
func (c ModelConfig) Store() modelstore.Config {
	return modelstore.Config{Backend: c.Backend, Path: c.Path, Name: c.Name}
}

// MonitorConfig configures the polling loop.
type MonitorConfig struct {
	IntervalSeconds int    `json:"interval_seconds"`
	TopN            int    `json:"top_n"`
	FallbackSamples int    `json:"fallback_samples"`
	Seed            uint64 `json:"seed"`
}

// SetDefaults applies sane defaults.
func (c *MonitorConfig) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 30
	}
	if c.TopN <= 0 {
		c.TopN = pipeline.DefaultTopN
	}
	if c.FallbackSamples <= 0 {
		c.FallbackSamples = pipeline.DefaultFallbackSamples
	}
}

// Validate checks the ranges.
func (c MonitorConfig) Validate() error {
	if c.FallbackSamples > 50 {
		return fmt.Errorf("fallback_samples must be <= 50, got %d", c.FallbackSamples)
	}
	return nil
}

// Interval returns the pause between cycles.
func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// IngestionConfig overrides the defaults used to backfill optional train fields.
type IngestionConfig struct {
	Station                   string  `json:"station"`
	StationClass              string  `json:"station_class"`
	MeanDistanceToNext        float64 `json:"mean_distance_to_next"`
	MeanDistanceToDestination float64 `json:"mean_distance_to_destination"`
	Seed                      uint64  `json:"seed"`
}

// SetDefaults fills unset fields from features.DefaultPolicy.
func (c *IngestionConfig) SetDefaults() {
	d := features.DefaultPolicy()
	if c.Station == "" {
		c.Station = d.Station
	}
	if c.StationClass == "" {
		c.StationClass = string(d.StationClass)
	}
	if c.MeanDistanceToNext <= 0 {
		c.MeanDistanceToNext = d.MeanDistanceToNext
	}
	if c.MeanDistanceToDestination <= 0 {
		c.MeanDistanceToDestination = d.MeanDistanceToDestination
	}
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
}

// Validate checks the station class.
func (c IngestionConfig) Validate() error {
	switch model.StationClass(c.StationClass) {
	case model.StationMajor, model.StationJunction, model.StationYard, model.StationSuburban, model.StationFreight:
		return nil
	}
	return fmt.Errorf("unknown station_class %q", c.StationClass)
}

// Policy converts the section into an ingestion policy.
func (c IngestionConfig) Policy() features.Policy {
	p := features.DefaultPolicy()
	p.Station = c.Station
	p.StationClass = model.StationClass(c.StationClass)
	p.MeanDistanceToNext = c.MeanDistanceToNext
	p.MeanDistanceToDestination = c.MeanDistanceToDestination
	p.Seed = c.Seed
	return p
}

// APIConfig configures the HTTP API. An empty Addr disables it.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as a bearer token.
	Token string `json:"token"`
}
