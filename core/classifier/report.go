package classifier

import "time"

// Diagnostic thresholds.
const (
	OverfitGap       = 0.10
	UnderfitAccuracy = 0.70
)

// CVScore holds the cross-validation accuracies of one family.
type CVScore struct {
	Family Family    `json:"family"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
	Folds  []float64 `json:"folds"`
}

// Report describes a training run.
type Report struct {
	Samples           int           `json:"samples"`
	TrainSize         int           `json:"train_size"`
	TestSize          int           `json:"test_size"`
	CV                []CVScore     `json:"cv"`
	Family            Family        `json:"family"`
	TrainAccuracy     float64       `json:"train_accuracy"`
	TestAccuracy      float64       `json:"test_accuracy"`
	Gap               float64       `json:"gap"`
	Overfitting       bool          `json:"overfitting"`
	Underfitting      bool          `json:"underfitting"`
	ClassDistribution map[int]int   `json:"class_distribution"`
	Confusion         [2][2]int     `json:"confusion"`
	Precision         [2]float64    `json:"precision"`
	Recall            [2]float64    `json:"recall"`
	FeatureNames      []string      `json:"feature_names"`
	Duration          time.Duration `json:"duration"`
}

func (r *Report) finish() {
	r.Gap = r.TrainAccuracy - r.TestAccuracy
	r.Overfitting = r.Gap > OverfitGap
	r.Underfitting = r.TestAccuracy < UnderfitAccuracy
	for c := 0; c < 2; c++ {
		var predicted, actual int
		for k := 0; k < 2; k++ {
			predicted += r.Confusion[k][c]
			actual += r.Confusion[c][k]
		}
		r.Precision[c] = ratio(r.Confusion[c][c], predicted)
		r.Recall[c] = ratio(r.Confusion[c][c], actual)
	}
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func accuracy(want, got []int) float64 {
	if len(want) == 0 {
		return 0
	}
	var ok int
	for i := range want {
		if want[i] == got[i] {
			ok++
		}
	}
	return float64(ok) / float64(len(want))
}

// confusion is indexed [actual][predicted].
func confusion(want, got []int) [2][2]int {
	var m [2][2]int
	for i := range want {
		m[want[i]][got[i]]++
	}
	return m
}

func classCounts(y []int) map[int]int {
	out := map[int]int{}
	for _, v := range y {
		out[v]++
	}
	return out
}
