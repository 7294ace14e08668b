package features

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/railflow/core/model"
)

// Policy holds the defaults used to backfill optional train fields.
type Policy struct {
	Station                   string
	StationClass              model.StationClass
	MeanDistanceToNext        float64
	MeanDistanceToDestination float64
	StoppedDistanceToNext     float64
	Seed                      uint64
	// Now supplies hour_of_day and day_of_week. Defaults to time.Now.
	Now func() time.Time
}

// DefaultPolicy returns the policy used by the monitor and the stdin entry point.
func DefaultPolicy() Policy {
	return Policy{
		Station:                   "HWH",
		StationClass:              model.StationMajor,
		MeanDistanceToNext:        5000,
		MeanDistanceToDestination: 25000,
		StoppedDistanceToNext:     10000,
		Seed:                      42,
		Now:                       time.Now,
	}
}

type fieldRule struct {
	field string
	fill  func(in *Ingester, raw model.RawTrain, rec *model.TrainRecord)
}

// Rules run in order; later rules may depend on fields set by earlier ones.
var rules = []fieldRule{
	{"station", fillStation},
	{"station_type", fillStationClass},
	{"occupancy", fillOccupancy},
	{"signal_status", fillSignal},
	{"distance_to_next", fillDistanceToNext},
	{"distance_to_destination", fillDistanceToDestination},
	{"time_to_clear", fillTimeToClear},
	{"hour_of_day", fillHour},
	{"day_of_week", fillDay},
}

// OptionalFields lists the fields Ingest backfills, in application order.
func OptionalFields() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.field
	}
	return out
}

// Ingester converts raw train objects into complete TrainRecords.
// It is safe for concurrent use.
type Ingester struct {
	policy Policy

	mu   sync.Mutex
	rand *rand.Rand
}

// NewIngester creates an Ingester for p. Zero fields of p take the values of
// DefaultPolicy.
func NewIngester(p Policy) *Ingester {
	d := DefaultPolicy()
	if p.Station == "" {
		p.Station = d.Station
	}
	if p.StationClass == "" {
		p.StationClass = d.StationClass
	}
	if p.MeanDistanceToNext <= 0 {
		p.MeanDistanceToNext = d.MeanDistanceToNext
	}
	if p.MeanDistanceToDestination <= 0 {
		p.MeanDistanceToDestination = d.MeanDistanceToDestination
	}
	if p.StoppedDistanceToNext <= 0 {
		p.StoppedDistanceToNext = d.StoppedDistanceToNext
	}
	if p.Now == nil {
		p.Now = d.Now
	}
	return &Ingester{policy: p, rand: rand.New(rand.NewPCG(p.Seed, p.Seed))}
}

// Ingest validates raw trains and backfills every optional field. A missing
// or negative speed is a SchemaError and aborts the batch.
func (in *Ingester) Ingest(raws []model.RawTrain) ([]model.TrainRecord, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]model.TrainRecord, len(raws))
	for i, raw := range raws {
		rec, err := in.ingest(i, raw)
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

func (in *Ingester) ingest(i int, raw model.RawTrain) (model.TrainRecord, error) {
	if raw.Speed == nil {
		return model.TrainRecord{}, &SchemaError{Index: i, Field: "speed", Reason: "missing"}
	}
	if *raw.Speed < 0 || math.IsNaN(*raw.Speed) || math.IsInf(*raw.Speed, 0) {
		return model.TrainRecord{}, &SchemaError{Index: i, Field: "speed", Reason: fmt.Sprintf("invalid value %v", *raw.Speed)}
	}
	rec := model.TrainRecord{
		ID:       raw.Identifier(),
		Name:     raw.Name,
		Category: model.ParseCategory(raw.Category),
		Speed:    *raw.Speed,
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("TRAIN_%d", i)
	}
	if raw.Delay != nil && *raw.Delay > 0 {
		rec.Delay = *raw.Delay
	}
	if raw.Lat != nil {
		rec.Lat = *raw.Lat
	}
	if raw.Lon != nil {
		rec.Lon = *raw.Lon
	}
	for _, r := range rules {
		r.fill(in, raw, &rec)
	}
	return rec, nil
}

func fillStation(in *Ingester, raw model.RawTrain, rec *model.TrainRecord) {
	if raw.Station != nil && strings.TrimSpace(*raw.Station) != "" {
		rec.Station = strings.TrimSpace(*raw.Station)
		return
	}
	rec.Station = in.policy.Station
}

func fillStationClass(in *Ingester, raw model.RawTrain, rec *model.TrainRecord) {
	if raw.StationType != nil && strings.TrimSpace(*raw.StationType) != "" {
		rec.StationClass = model.StationClass(strings.ToLower(strings.TrimSpace(*raw.StationType)))
		return
	}
	if st, ok := model.LookupStation(rec.Station); ok {
		rec.StationClass = st.Class
		return
	}
	rec.StationClass = in.policy.StationClass
}

// EstimateOccupancy guesses section occupancy from speed.
func EstimateOccupancy(speed float64) int {
	switch {
	case speed < 20:
		return 3
	case speed < 40:
		return 2
	default:
		return 1
	}
}

func fillOccupancy(_ *Ingester, raw model.RawTrain, rec *model.TrainRecord) {
	if raw.Occupancy != nil && *raw.Occupancy >= 0 {
		rec.Occupancy = int(math.Round(*raw.Occupancy))
		return
	}
	rec.Occupancy = EstimateOccupancy(rec.Speed)
}

// EstimateSignal guesses the signal aspect from speed and delay.
func EstimateSignal(speed, delay float64) model.SignalState {
	switch {
	case speed < 10 || delay > 20:
		return model.SignalRed
	case speed < 30 || delay > 10:
		return model.SignalYellow
	default:
		return model.SignalGreen
	}
}

func fillSignal(_ *Ingester, raw model.RawTrain, rec *model.TrainRecord) {
	if raw.SignalStatus != nil && raw.SignalStatus.Valid() {
		rec.Signal = *raw.SignalStatus
		return
	}
	rec.Signal = EstimateSignal(rec.Speed, rec.Delay)
}

func fillDistanceToNext(in *Ingester, raw model.RawTrain, rec *model.TrainRecord) {
	switch {
	case raw.DistanceToNext != nil && *raw.DistanceToNext >= 0:
		rec.DistanceToNext = *raw.DistanceToNext
	case rec.Speed == 0:
		rec.DistanceToNext = in.policy.StoppedDistanceToNext
	default:
		rec.DistanceToNext = in.exp(in.policy.MeanDistanceToNext)
	}
}

func fillDistanceToDestination(in *Ingester, raw model.RawTrain, rec *model.TrainRecord) {
	if raw.DistanceToDestination != nil && *raw.DistanceToDestination >= 0 {
		rec.DistanceToDestination = *raw.DistanceToDestination
		return
	}
	rec.DistanceToDestination = in.exp(in.policy.MeanDistanceToDestination)
}

func fillTimeToClear(_ *Ingester, raw model.RawTrain, rec *model.TrainRecord) {
	if raw.TimeToClear != nil && *raw.TimeToClear >= 0 {
		rec.TimeToClear = *raw.TimeToClear
		return
	}
	rec.TimeToClear = model.TimeToClear(rec.DistanceToNext, rec.Speed)
}

func fillHour(in *Ingester, raw model.RawTrain, rec *model.TrainRecord) {
	if raw.HourOfDay != nil && *raw.HourOfDay >= 0 && *raw.HourOfDay < 24 {
		rec.HourOfDay = int(*raw.HourOfDay)
		return
	}
	rec.HourOfDay = in.policy.Now().Hour()
}

func fillDay(in *Ingester, raw model.RawTrain, rec *model.TrainRecord) {
	if raw.DayOfWeek != nil && *raw.DayOfWeek >= 0 && *raw.DayOfWeek < 7 {
		rec.DayOfWeek = int(*raw.DayOfWeek)
		return
	}
	rec.DayOfWeek = Weekday(in.policy.Now())
}

// Weekday returns the day of week of t with Monday as 0.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func (in *Ingester) exp(mean float64) float64 {
	return distuv.Exponential{Rate: 1 / mean, Src: in.rand}.Rand()
}
