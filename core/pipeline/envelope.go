package pipeline

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/railflow/core/classifier"
	"github.com/kilianp07/railflow/core/model"
	"github.com/kilianp07/railflow/core/optimizer"
)

// DefaultTopN is the number of suggestions kept in an envelope.
const DefaultTopN = 10

// BuildEnvelope assembles the result of one prediction run. recs and pred
// must have the same length.
func BuildEnvelope(runID, source string, now time.Time, recs []model.TrainRecord, pred classifier.Prediction, suggestions []model.Suggestion, topN int) model.ResultEnvelope {
	env := model.ResultEnvelope{
		RunID:                   runID,
		Timestamp:               now,
		Source:                  source,
		TotalTrains:             len(recs),
		CongestionPredictions:   pred.Labels,
		CongestionProbabilities: pred.Probabilities,
		HighRiskTrains:          []model.HighRiskTrain{},
		OptimizationSuggestions: optimizer.TopN(suggestions, topN),
	}
	for i, r := range recs {
		if pred.Labels[i] != 1 {
			continue
		}
		env.CongestedTrains++
		if p := pred.Probabilities[i]; p > model.HighRiskThreshold {
			env.HighRiskTrains = append(env.HighRiskTrains, model.HighRiskTrain{
				TrainID:               r.ID,
				Name:                  r.Name,
				Category:              r.Category,
				Speed:                 r.Speed,
				Delay:                 r.Delay,
				CongestionProbability: p,
				Location:              model.Location{Lat: r.Lat, Lon: r.Lon},
			})
		}
	}
	if len(recs) > 0 {
		env.CongestionRate = float64(env.CongestedTrains) / float64(len(recs))
		env.Summary.AverageRisk = stat.Mean(pred.Probabilities, nil)
	}
	env.Summary.TotalTrains = env.TotalTrains
	env.Summary.CongestedTrains = env.CongestedTrains
	env.Summary.CongestionRate = fmt.Sprintf("%.1f%%", env.CongestionRate*100)
	env.Summary.TopAction = model.ActionMonitor
	if len(env.OptimizationSuggestions) > 0 {
		env.Summary.TopAction = env.OptimizationSuggestions[0].Action
	}
	return env
}
