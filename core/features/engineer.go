package features

import (
	"fmt"

	"github.com/kilianp07/railflow/core/model"
)

var featureNames = []string{
	"speed",
	"occupancy",
	"signal_status",
	"delay",
	"time_to_clear",
	"distance_to_next",
	"distance_to_destination",
	"hour_of_day",
	"day_of_week",
	"category_encoded",
	"station_type_encoded",
	"speed_occupancy_ratio",
	"delay_speed_ratio",
	"is_peak_hour",
	"is_weekend",
}

// Names returns the feature order produced by FitTransform.
func Names() []string { return append([]string(nil), featureNames...) }

type extractor func(r model.TrainRecord, e Encoder) float64

var extractors = map[string]extractor{
	"speed":                   func(r model.TrainRecord, _ Encoder) float64 { return r.Speed },
	"occupancy":               func(r model.TrainRecord, _ Encoder) float64 { return float64(r.Occupancy) },
	"signal_status":           func(r model.TrainRecord, _ Encoder) float64 { return float64(r.Signal) },
	"delay":                   func(r model.TrainRecord, _ Encoder) float64 { return r.Delay },
	"time_to_clear":           func(r model.TrainRecord, _ Encoder) float64 { return r.TimeToClear },
	"distance_to_next":        func(r model.TrainRecord, _ Encoder) float64 { return r.DistanceToNext },
	"distance_to_destination": func(r model.TrainRecord, _ Encoder) float64 { return r.DistanceToDestination },
	"hour_of_day":             func(r model.TrainRecord, _ Encoder) float64 { return float64(r.HourOfDay) },
	"day_of_week":             func(r model.TrainRecord, _ Encoder) float64 { return float64(r.DayOfWeek) },
	"category_encoded":        func(r model.TrainRecord, e Encoder) float64 { return float64(e.CategoryCode(r.Category)) },
	"station_type_encoded":    func(r model.TrainRecord, e Encoder) float64 { return float64(e.StationClassCode(r.StationClass)) },
	"speed_occupancy_ratio":   func(r model.TrainRecord, _ Encoder) float64 { return r.Speed / float64(r.Occupancy+1) },
	"delay_speed_ratio":       func(r model.TrainRecord, _ Encoder) float64 { return r.Delay / (r.Speed + 1) },
	"is_peak_hour":            func(r model.TrainRecord, _ Encoder) float64 { return flag(model.IsPeakHour(r.HourOfDay)) },
	"is_weekend":              func(r model.TrainRecord, _ Encoder) float64 { return flag(model.IsWeekend(r.DayOfWeek)) },
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Engineer turns records into feature rows using a fixed encoder and a fixed
// feature order.
type Engineer struct {
	Encoder Encoder
	Names   []string
}

// FitTransform fits the encoder on recs and returns their features and labels.
func FitTransform(recs []model.LabeledRecord) (*Engineer, [][]float64, []int) {
	plain := model.Records(recs)
	eng := &Engineer{Encoder: FitEncoder(plain), Names: Names()}
	rows, _ := eng.Transform(plain)
	return eng, rows, model.Labels(recs)
}

// Transform builds one row per record in the order of e.Names.
func (e *Engineer) Transform(recs []model.TrainRecord) ([][]float64, error) {
	fns := make([]extractor, len(e.Names))
	for i, n := range e.Names {
		fn, ok := extractors[n]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", n)
		}
		fns[i] = fn
	}
	rows := make([][]float64, len(recs))
	for i, r := range recs {
		row := make([]float64, len(fns))
		for j, fn := range fns {
			row[j] = fn(r, e.Encoder)
		}
		rows[i] = row
	}
	return rows, nil
}
