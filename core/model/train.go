package model

import "strings"

// Category is the service class of a train.
type Category string

const (
	CategoryPassenger Category = "passenger"
	CategoryExpress   Category = "express"
	CategoryHighSpeed Category = "high-speed"
	CategoryFreight   Category = "freight"
)

// Categories lists the known categories in a stable order.
var Categories = []Category{CategoryPassenger, CategoryExpress, CategoryHighSpeed, CategoryFreight}

// ParseCategory normalises a category label. "vande" and "vande bharat" are
// accepted as aliases of high-speed. Unknown labels are returned lower-cased
// so the encoder can map them to its reserved code.
func ParseCategory(v string) Category {
	s := strings.ToLower(strings.TrimSpace(v))
	switch s {
	case "", "passenger", "local", "emu":
		return CategoryPassenger
	case "express", "superfast":
		return CategoryExpress
	case "high-speed", "highspeed", "high_speed", "vande", "vande bharat":
		return CategoryHighSpeed
	case "freight", "goods":
		return CategoryFreight
	default:
		return Category(s)
	}
}

// StationClass is the operational class of a station.
type StationClass string

const (
	StationMajor    StationClass = "major"
	StationJunction StationClass = "junction"
	StationYard     StationClass = "yard"
	StationSuburban StationClass = "suburban"
	StationFreight  StationClass = "freight"
)

// TrainRecord is one observation of a train in a section. It never carries a
// congestion label; see LabeledRecord.
type TrainRecord struct {
	ID                    string       `json:"train_id"`
	Name                  string       `json:"name,omitempty"`
	Category              Category     `json:"category"`
	Station               string       `json:"station"`
	StationClass          StationClass `json:"station_type"`
	Speed                 float64      `json:"speed"`
	Occupancy             int          `json:"occupancy"`
	Signal                SignalState  `json:"signal_status"`
	Delay                 float64      `json:"delay"`
	DistanceToNext        float64      `json:"distance_to_next"`
	DistanceToDestination float64      `json:"distance_to_destination"`
	TimeToClear           float64      `json:"time_to_clear"`
	HourOfDay             int          `json:"hour_of_day"`
	DayOfWeek             int          `json:"day_of_week"`
	Lat                   float64      `json:"lat"`
	Lon                   float64      `json:"lon"`
}

// LabeledRecord is a training observation with its congestion label (0 or 1).
type LabeledRecord struct {
	TrainRecord
	Congestion int `json:"congestion"`
}

// TimeToClear returns the derived seconds needed to clear the section.
func TimeToClear(distanceToNext, speed float64) float64 {
	return distanceToNext / (speed + 1)
}

// PeakHours are the hours of day treated as peak traffic.
var PeakHours = []int{7, 8, 9, 17, 18, 19}

// IsPeakHour reports whether h is a peak hour.
func IsPeakHour(h int) bool {
	for _, p := range PeakHours {
		if p == h {
			return true
		}
	}
	return false
}

// IsWeekend reports whether day (Monday=0) falls on a weekend.
func IsWeekend(day int) bool { return day == 5 || day == 6 }

// Records strips the labels from a labeled batch.
func Records(in []LabeledRecord) []TrainRecord {
	out := make([]TrainRecord, len(in))
	for i, r := range in {
		out[i] = r.TrainRecord
	}
	return out
}

// Labels returns the congestion labels of a labeled batch.
func Labels(in []LabeledRecord) []int {
	out := make([]int, len(in))
	for i, r := range in {
		out[i] = r.Congestion
	}
	return out
}

// RawTrain is a train object as delivered by the simulation backend or the
// stdin entry point. Pointer fields are optional and are backfilled during
// ingestion.
type RawTrain struct {
	ID       string   `json:"id,omitempty"`
	Number   string   `json:"number,omitempty"`
	Name     string   `json:"name,omitempty"`
	Category string   `json:"category,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
	Delay    *float64 `json:"delay,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	Status   string   `json:"status,omitempty"`

	Station               *string      `json:"station,omitempty"`
	StationType           *string      `json:"station_type,omitempty"`
	Occupancy             *float64     `json:"occupancy,omitempty"`
	SignalStatus          *SignalState `json:"signal_status,omitempty"`
	DistanceToNext        *float64     `json:"distance_to_next,omitempty"`
	DistanceToDestination *float64     `json:"distance_to_destination,omitempty"`
	TimeToClear           *float64     `json:"time_to_clear,omitempty"`
	HourOfDay             *float64     `json:"hour_of_day,omitempty"`
	DayOfWeek             *float64     `json:"day_of_week,omitempty"`
}

// Identifier returns id, falling back to number.
func (t RawTrain) Identifier() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Number
}
