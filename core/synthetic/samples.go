package synthetic

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/railflow/core/model"
)

// SampleCap bounds the number of sample trains returned by SampleTrains.
const SampleCap = 50

type speedRange struct {
	min, max float64
}

var sampleSpeeds = map[model.Category]speedRange{
	model.CategoryPassenger: {min: 20, max: 60},
	model.CategoryExpress:   {min: 45, max: 90},
	model.CategoryHighSpeed: {min: 60, max: 110},
	model.CategoryFreight:   {min: 20, max: 55},
}

var displayNames = map[model.Category]string{
	model.CategoryPassenger: "Passenger",
	model.CategoryExpress:   "Express",
	model.CategoryHighSpeed: "High-Speed",
	model.CategoryFreight:   "Freight",
}

// SampleTrains returns count backend-shaped running trains, capped at
// SampleCap. Optional ML columns are left unset so that ingestion fills them.
func SampleTrains(count int, r *rand.Rand) []model.RawTrain {
	if count > SampleCap {
		count = SampleCap
	}
	if count <= 0 {
		return nil
	}
	out := make([]model.RawTrain, count)
	for i := range out {
		cat := model.Categories[r.IntN(len(model.Categories))]
		sr := sampleSpeeds[cat]
		speed := distuv.Uniform{Min: sr.min, Max: sr.max, Src: r}.Rand()
		delay := float64(r.IntN(31))
		lat := distuv.Uniform{Min: model.MinLat, Max: model.MaxLat, Src: r}.Rand()
		lon := distuv.Uniform{Min: model.MinLon, Max: model.MaxLon, Src: r}.Rand()
		out[i] = model.RawTrain{
			ID:       fmt.Sprintf("T%d", 10000+r.IntN(90000)),
			Number:   fmt.Sprintf("T%d", 10000+r.IntN(90000)),
			Name:     fmt.Sprintf("%s Train %d", displayNames[cat], i+1),
			Category: string(cat),
			Speed:    &speed,
			Delay:    &delay,
			Lat:      &lat,
			Lon:      &lon,
			From:     model.Stations[r.IntN(len(model.Stations))].Code,
			To:       model.Stations[r.IntN(len(model.Stations))].Code,
			Status:   "Running",
		}
	}
	return out
}
