package synthetic

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/railflow/core/model"
)

// Speed is clamped to this range after sampling.
const (
	MinSpeed = 0.0
	MaxSpeed = 130.0
)

// MaxOccupancy caps the number of trains sharing a section.
const MaxOccupancy = 5

// PeakOverrideProbability is the chance that a peak-hour record is marked
// congested even when the base rule does not fire.
const PeakOverrideProbability = 0.3

var categoryWeights = []float64{0.4, 0.3, 0.1, 0.2}

// indexed by model.SignalState
var signalWeights = []float64{0.15, 0.25, 0.6}

type speedProfile struct {
	mean, std float64
}

var speedProfiles = map[model.Category]speedProfile{
	model.CategoryPassenger: {mean: 45, std: 10},
	model.CategoryExpress:   {mean: 65, std: 12},
	model.CategoryHighSpeed: {mean: 85, std: 15},
	model.CategoryFreight:   {mean: 35, std: 10},
}

func occupancyMean(c model.StationClass) float64 {
	switch c {
	case model.StationMajor:
		return 2.5
	case model.StationJunction:
		return 2.0
	default:
		return 1.0
	}
}

// Generator draws labeled train records.
type Generator struct {
	src      rand.Source
	rand     *rand.Rand
	category distuv.Categorical
	signal   distuv.Categorical
}

// New returns a Generator seeded with seed.
func New(seed uint64) *Generator {
	src := rand.NewPCG(seed, seed)
	return &Generator{
		src:      src,
		rand:     rand.New(src),
		category: distuv.NewCategorical(categoryWeights, src),
		signal:   distuv.NewCategorical(signalWeights, src),
	}
}

// Generate returns n labeled records drawn with the given seed.
func Generate(n int, seed uint64) []model.LabeledRecord {
	return New(seed).Generate(n)
}

// Generate draws n labeled records.
func (g *Generator) Generate(n int) []model.LabeledRecord {
	if n <= 0 {
		return nil
	}
	out := make([]model.LabeledRecord, n)
	for i := range out {
		out[i] = g.next()
	}
	return out
}

func (g *Generator) next() model.LabeledRecord {
	id := fmt.Sprintf("T%d", 10000+g.rand.IntN(90000))
	cat := model.Categories[int(g.category.Rand())]

	p := speedProfiles[cat]
	speed := distuv.Normal{Mu: p.mean, Sigma: p.std, Src: g.src}.Rand()
	speed = math.Max(MinSpeed, math.Min(MaxSpeed, speed))

	st := model.Stations[g.rand.IntN(len(model.Stations))]

	distNext := g.exp(5000)
	distDest := g.exp(25000)

	occ := int(distuv.Poisson{Lambda: occupancyMean(st.Class), Src: g.src}.Rand())
	if occ > MaxOccupancy {
		occ = MaxOccupancy
	}

	sig := model.SignalState(int(g.signal.Rand()))

	delay := 0.0
	if speed < 30 {
		delay += g.exp(10)
	}
	if occ >= 3 {
		delay += g.exp(8)
	}
	if sig == model.SignalRed {
		delay += g.exp(5)
	}
	if cat == model.CategoryFreight {
		delay += g.exp(3)
	}
	delay = math.Max(0, delay+distuv.Normal{Mu: 0, Sigma: 2, Src: g.src}.Rand())

	rec := model.TrainRecord{
		ID:                    id,
		Category:              cat,
		Station:               st.Code,
		StationClass:          st.Class,
		Speed:                 speed,
		Occupancy:             occ,
		Signal:                sig,
		Delay:                 delay,
		DistanceToNext:        distNext,
		DistanceToDestination: distDest,
		TimeToClear:           model.TimeToClear(distNext, speed),
	}

	congested := Congested(rec)
	rec.HourOfDay = g.rand.IntN(24)
	rec.DayOfWeek = g.rand.IntN(7)
	if model.IsPeakHour(rec.HourOfDay) && g.rand.Float64() < PeakOverrideProbability {
		congested = true
	}

	jitter := distuv.Normal{Mu: 0, Sigma: 0.01, Src: g.src}
	rec.Lat = st.Lat + jitter.Rand()
	rec.Lon = st.Lon + jitter.Rand()

	label := 0
	if congested {
		label = 1
	}
	return model.LabeledRecord{TrainRecord: rec, Congestion: label}
}

func (g *Generator) exp(mean float64) float64 {
	return distuv.Exponential{Rate: 1 / mean, Src: g.src}.Rand()
}

// Congested applies the base labelling rule, without the peak-hour override.
func Congested(r model.TrainRecord) bool {
	return r.Occupancy >= 3 ||
		r.Speed < 25 ||
		r.Signal == model.SignalRed ||
		r.Delay > 20 ||
		r.TimeToClear > 300
}
