// Package scenarios runs named train records against a trained model and
// reports where the predicted label or the suggested action differs from the
// expectation.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/railflow/core/model"
)

// TrainDef describes one train. Unset optional fields are backfilled by
// ingestion, exactly as for live input.
type TrainDef struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name,omitempty"`
	Category       string   `yaml:"category,omitempty"`
	Speed          *float64 `yaml:"speed"`
	Delay          *float64 `yaml:"delay,omitempty"`
	Occupancy      *float64 `yaml:"occupancy,omitempty"`
	Signal         string   `yaml:"signal,omitempty"`
	Station        string   `yaml:"station,omitempty"`
	StationType    string   `yaml:"station_type,omitempty"`
	DistanceToNext *float64 `yaml:"distance_to_next,omitempty"`
	Hour           *float64 `yaml:"hour,omitempty"`
	Day            *float64 `yaml:"day,omitempty"`
}

// ToRaw converts the definition into a raw train.
func (d TrainDef) ToRaw() (model.RawTrain, error) {
	raw := model.RawTrain{
		ID:             d.ID,
		Name:           d.Name,
		Category:       d.Category,
		Speed:          d.Speed,
		Delay:          d.Delay,
		Occupancy:      d.Occupancy,
		DistanceToNext: d.DistanceToNext,
		HourOfDay:      d.Hour,
		DayOfWeek:      d.Day,
	}
	if d.Station != "" {
		raw.Station = &d.Station
	}
	if d.StationType != "" {
		raw.StationType = &d.StationType
	}
	if d.Signal != "" {
		s, err := model.ParseSignalState(d.Signal)
		if err != nil {
			return raw, fmt.Errorf("train %s: %w", d.ID, err)
		}
		raw.SignalStatus = &s
	}
	return raw, nil
}

// Expected is the outcome a case must produce. Nil or empty fields are not
// checked.
type Expected struct {
	Label *int `yaml:"label,omitempty"`
	// Actions lists the acceptable suggested actions. "none" expects no
	// suggestion.
	Actions        []string `yaml:"actions,omitempty"`
	MinProbability *float64 `yaml:"min_probability,omitempty"`
	MaxProbability *float64 `yaml:"max_probability,omitempty"`
}

// Case is one train and its expectation.
type Case struct {
	Train  TrainDef `yaml:"train"`
	Expect Expected `yaml:"expect"`
}

// Scenario is a named set of cases.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Now fixes the clock used to backfill hour and day. Defaults to the
	// current time.
	Now   *time.Time `yaml:"now,omitempty"`
	Cases []Case     `yaml:"cases"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if len(sc.Cases) == 0 {
		return nil, fmt.Errorf("%s: scenario %q has no cases", path, sc.Name)
	}
	return &sc, nil
}
