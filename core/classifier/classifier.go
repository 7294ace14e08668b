package classifier

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/railflow/core/features"
	"github.com/kilianp07/railflow/core/logger"
	"github.com/kilianp07/railflow/core/model"
)

// Family identifies a model family.
type Family string

const (
	FamilyForest   Family = "random_forest"
	FamilyBoosting Family = "gradient_boosting"
)

// Families lists the candidates in evaluation order. On equal CV accuracy the
// first one wins.
var Families = []Family{FamilyForest, FamilyBoosting}

// Params configures training.
type Params struct {
	Trees           int     `json:"trees"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	BoostingStages  int     `json:"boosting_stages"`
	BoostingDepth   int     `json:"boosting_depth"`
	LearningRate    float64 `json:"learning_rate"`
	Folds           int     `json:"folds"`
	TestFraction    float64 `json:"test_fraction"`
	Seed            uint64  `json:"seed"`
}

// DefaultParams returns the production training parameters.
func DefaultParams() Params {
	return Params{
		Trees:           100,
		MaxDepth:        10,
		MinSamplesSplit: 5,
		BoostingStages:  100,
		BoostingDepth:   6,
		LearningRate:    0.1,
		Folds:           5,
		TestFraction:    0.2,
		Seed:            42,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Trees <= 0 {
		p.Trees = d.Trees
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = d.MinSamplesSplit
	}
	if p.BoostingStages <= 0 {
		p.BoostingStages = d.BoostingStages
	}
	if p.BoostingDepth <= 0 {
		p.BoostingDepth = d.BoostingDepth
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.Folds < 2 {
		p.Folds = d.Folds
	}
	if p.TestFraction <= 0 || p.TestFraction >= 1 {
		p.TestFraction = d.TestFraction
	}
	return p
}

// Prediction holds one label and one congestion probability per record.
type Prediction struct {
	Labels        []int
	Probabilities []float64
}

type estimator interface {
	probability(x []float64) float64
}

// TrainedModel bundles a fitted estimator with its scaler and feature
// encoder. It is immutable and safe for concurrent Predict calls.
type TrainedModel struct {
	family   Family
	forest   *Forest
	boosting *Boosting
	scaler   Scaler
	engineer *features.Engineer
	trained  bool
}

// Family returns the served model family.
func (m *TrainedModel) Family() Family { return m.family }

// FeatureNames returns the feature order recorded at training time.
func (m *TrainedModel) FeatureNames() []string {
	return append([]string(nil), m.engineer.Names...)
}

// Encoder returns the category tables recorded at training time.
func (m *TrainedModel) Encoder() features.Encoder { return m.engineer.Encoder }

func (m *TrainedModel) estimator() estimator {
	if m.family == FamilyBoosting {
		return m.boosting
	}
	return m.forest
}

// Predict labels each record as congested when its probability is at least 0.5.
func (m *TrainedModel) Predict(recs []model.TrainRecord) (Prediction, error) {
	if m == nil || !m.trained {
		return Prediction{}, ErrModelNotTrained
	}
	rows, err := m.engineer.Transform(recs)
	if err != nil {
		return Prediction{}, err
	}
	scaled, err := m.scaler.Transform(rows)
	if err != nil {
		return Prediction{}, err
	}
	est := m.estimator()
	out := Prediction{Labels: make([]int, len(recs)), Probabilities: make([]float64, len(recs))}
	for i, z := range scaled {
		p := est.probability(z)
		out.Probabilities[i] = p
		if p >= 0.5 {
			out.Labels[i] = 1
		}
	}
	return out, nil
}

// Trainer fits TrainedModels.
type Trainer struct {
	Params Params
	Log    logger.Logger
}

type fitted struct {
	family   Family
	forest   *Forest
	boosting *Boosting
}

func (f fitted) estimator() estimator {
	if f.family == FamilyBoosting {
		return f.boosting
	}
	return f.forest
}

func fit(ctx context.Context, family Family, x [][]float64, y []int, p Params) (fitted, error) {
	switch family {
	case FamilyForest:
		m, err := fitForest(ctx, x, y, p, p.Seed)
		return fitted{family: family, forest: m}, err
	case FamilyBoosting:
		m, err := fitBoosting(ctx, x, y, p)
		return fitted{family: family, boosting: m}, err
	default:
		return fitted{}, fmt.Errorf("unknown model family %q", family)
	}
}

// Train splits recs, cross-validates both families on the training split and
// refits the better one.
func (t Trainer) Train(ctx context.Context, recs []model.LabeledRecord) (Report, *TrainedModel, error) {
	start := time.Now()
	p := t.Params.withDefaults()
	if err := checkClasses(recs, p.Folds); err != nil {
		return Report{}, nil, err
	}

	eng, x, y := features.FitTransform(recs)
	r := rand.New(rand.NewPCG(p.Seed, p.Seed+1))
	trainIdx, testIdx := stratifiedSplit(y, p.TestFraction, r)
	xTrain, yTrain := subset(x, trainIdx), subset(y, trainIdx)
	xTest, yTest := subset(x, testIdx), subset(y, testIdx)

	scaler := FitScaler(xTrain)
	xTrain, _ = scaler.Transform(xTrain)
	xTest, _ = scaler.Transform(xTest)

	folds := stratifiedFolds(yTrain, p.Folds, r)
	scores, err := crossValidate(ctx, xTrain, yTrain, folds, p)
	if err != nil {
		return Report{}, nil, err
	}

	cv := make([]CVScore, len(Families))
	chosen := 0
	for i, fam := range Families {
		mean, std := stat.PopMeanStdDev(scores[i], nil)
		cv[i] = CVScore{Family: fam, Mean: mean, Std: std, Folds: scores[i]}
		if mean > cv[chosen].Mean {
			chosen = i
		}
	}
	t.logf("cv %s=%.4f %s=%.4f, serving %s", cv[0].Family, cv[0].Mean, cv[1].Family, cv[1].Mean, cv[chosen].Family)

	best, err := fit(ctx, Families[chosen], xTrain, yTrain, p)
	if err != nil {
		return Report{}, nil, err
	}
	est := best.estimator()
	trainPred := predictRows(est, xTrain)
	testPred := predictRows(est, xTest)

	rep := Report{
		Samples:           len(recs),
		TrainSize:         len(trainIdx),
		TestSize:          len(testIdx),
		CV:                cv,
		Family:            best.family,
		TrainAccuracy:     accuracy(yTrain, trainPred),
		TestAccuracy:      accuracy(yTest, testPred),
		ClassDistribution: classCounts(y),
		Confusion:         confusion(yTest, testPred),
		FeatureNames:      eng.Names,
	}
	rep.finish()
	rep.Duration = time.Since(start)
	t.diagnose(rep)

	m := &TrainedModel{
		family:   best.family,
		forest:   best.forest,
		boosting: best.boosting,
		scaler:   scaler,
		engineer: eng,
		trained:  true,
	}
	return rep, m, nil
}

func crossValidate(ctx context.Context, x [][]float64, y []int, folds [][]int, p Params) ([][]float64, error) {
	scores := make([][]float64, len(Families))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}
	g, ctx := errgroup.WithContext(ctx)
	for fi, fam := range Families {
		for k, hold := range folds {
			g.Go(func() error {
				keep := complement(len(y), hold)
				m, err := fit(ctx, fam, subset(x, keep), subset(y, keep), p)
				if err != nil {
					return err
				}
				scores[fi][k] = accuracy(subset(y, hold), predictRows(m.estimator(), subset(x, hold)))
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func predictRows(est estimator, x [][]float64) []int {
	out := make([]int, len(x))
	for i, row := range x {
		if est.probability(row) >= 0.5 {
			out[i] = 1
		}
	}
	return out
}

func checkClasses(recs []model.LabeledRecord, folds int) error {
	counts := map[int]int{}
	for _, r := range recs {
		if r.Congestion != 0 && r.Congestion != 1 {
			return fmt.Errorf("%w: label %d is not binary", ErrInsufficientData, r.Congestion)
		}
		counts[r.Congestion]++
	}
	for _, c := range []int{0, 1} {
		if counts[c] < 2*folds {
			return fmt.Errorf("%w: class %d has %d samples, need at least %d", ErrInsufficientData, c, counts[c], 2*folds)
		}
	}
	return nil
}

func (t Trainer) logf(format string, args ...any) {
	if t.Log != nil {
		t.Log.Infof(format, args...)
	}
}

func (t Trainer) diagnose(r Report) {
	if t.Log == nil {
		return
	}
	t.Log.Infof("test accuracy %.4f, train accuracy %.4f", r.TestAccuracy, r.TrainAccuracy)
	if r.Overfitting {
		t.Log.Warnf("possible overfitting: train-test gap %.4f", r.Gap)
	}
	if r.Underfitting {
		t.Log.Warnf("possible underfitting: test accuracy %.4f", r.TestAccuracy)
	}
}
