// Package config loads the railflow configuration from a YAML or JSON file
// with K_ prefixed environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/railflow/core/metrics"
	"github.com/kilianp07/railflow/infra/backend"
	"github.com/kilianp07/railflow/infra/cache"
	"github.com/kilianp07/railflow/infra/mqtt"
	"github.com/kilianp07/railflow/infra/resultstore"
)

type Config struct {
	LogLevel  string             `json:"log_level"`
	Backend   backend.Config     `json:"backend"`
	Model     ModelConfig        `json:"model"`
	Monitor   MonitorConfig      `json:"monitor"`
	Ingestion IngestionConfig    `json:"ingestion"`
	Storage   resultstore.Config `json:"storage"`
	Metrics   metrics.Config     `json:"metrics"`
	MQTT      mqtt.Config        `json:"mqtt"`
	Cache     cache.Config       `json:"cache"`
	API       APIConfig          `json:"api"`
	Sentry    SentryConfig       `json:"sentry"`
}

// Load reads path and applies environment overrides such as
// K_MONITOR__INTERVAL_SECONDS=10.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied. It is used
// when no configuration file exists.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Backend.SetDefaults()
	c.Model.SetDefaults()
	c.Monitor.SetDefaults()
	c.Ingestion.SetDefaults()
	c.Storage.SetDefaults()
	c.MQTT.SetDefaults()
	c.Cache.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	validators := []struct {
		section string
		fn      func() error
	}{
		{"backend", c.Backend.Validate},
		{"model", c.Model.Validate},
		{"monitor", c.Monitor.Validate},
		{"ingestion", c.Ingestion.Validate},
		{"storage", c.Storage.Validate},
		{"mqtt", c.MQTT.Validate},
		{"cache", c.Cache.Validate},
		{"sentry", c.Sentry.Validate},
	}
	for _, v := range validators {
		if err := v.fn(); err != nil {
			return fmt.Errorf("%s: %w", v.section, err)
		}
	}
	return nil
}
