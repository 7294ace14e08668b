package model

import "time"

// Location is a geographic position.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HighRiskTrain is a train predicted congested with probability above
// HighRiskThreshold.
type HighRiskTrain struct {
	TrainID               string   `json:"train_id"`
	Name                  string   `json:"name"`
	Category              Category `json:"category"`
	Speed                 float64  `json:"speed"`
	Delay                 float64  `json:"delay"`
	CongestionProbability float64  `json:"congestion_probability"`
	Location              Location `json:"location"`
}

// HighRiskThreshold is the probability above which a congested train is high risk.
const HighRiskThreshold = 0.7

// Summary condenses a prediction run for dashboards.
type Summary struct {
	TotalTrains     int     `json:"total_trains"`
	CongestedTrains int     `json:"congested_trains"`
	CongestionRate  string  `json:"congestion_rate"`
	TopAction       Action  `json:"top_action"`
	AverageRisk     float64 `json:"average_risk"`
}

// ResultEnvelope is the outcome of one prediction run.
type ResultEnvelope struct {
	RunID                   string          `json:"run_id"`
	Timestamp               time.Time       `json:"timestamp"`
	Source                  string          `json:"source"`
	TotalTrains             int             `json:"total_trains"`
	CongestionPredictions   []int           `json:"congestion_predictions"`
	CongestionProbabilities []float64       `json:"congestion_probabilities"`
	CongestionRate          float64         `json:"congestion_rate"`
	CongestedTrains         int             `json:"congested_trains"`
	HighRiskTrains          []HighRiskTrain `json:"high_risk_trains"`
	OptimizationSuggestions []Suggestion    `json:"optimization_suggestions"`
	Summary                 Summary         `json:"summary"`
}

// ErrorEnvelope is returned at the JSON boundary instead of a result.
type ErrorEnvelope struct {
	Error     string    `json:"error"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Data sources reported in envelopes.
const (
	SourceBackend   = "backend"
	SourceSynthetic = "synthetic"
	SourceInput     = "input"
)
