package classifier

import (
	"context"
	"math"
)

// Boosting is a gradient boosted ensemble of regression trees fitted on the
// log-loss gradient. Leaves hold Newton steps in log-odds space.
type Boosting struct {
	Prior        float64 `json:"prior"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []Tree  `json:"trees"`
}

const probEpsilon = 1e-12

func fitBoosting(ctx context.Context, x [][]float64, y []int, p Params) (*Boosting, error) {
	target := toFloat(y)
	all := make([]int, len(x))
	for i := range all {
		all[i] = i
	}
	base := math.Min(math.Max(meanOf(target, all), 1e-6), 1-1e-6)
	m := &Boosting{Prior: math.Log(base / (1 - base)), LearningRate: p.LearningRate}

	score := make([]float64, len(x))
	for i := range score {
		score[i] = m.Prior
	}
	prob := make([]float64, len(x))
	residual := make([]float64, len(x))
	b := &treeBuilder{
		x:        x,
		target:   residual,
		maxDepth: p.BoostingDepth,
		minSplit: 2,
		leaf: func(idx []int) float64 {
			var num, den float64
			for _, i := range idx {
				num += residual[i]
				den += prob[i] * (1 - prob[i])
			}
			if den < probEpsilon {
				return 0
			}
			return num / den
		},
	}
	for stage := 0; stage < p.BoostingStages; stage++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range score {
			prob[i] = sigmoid(score[i])
			residual[i] = target[i] - prob[i]
		}
		tree := b.build(all)
		for i := range score {
			score[i] += m.LearningRate * tree.Eval(x[i])
		}
		m.Trees = append(m.Trees, tree)
	}
	return m, nil
}

func (m *Boosting) probability(x []float64) float64 {
	s := m.Prior
	for i := range m.Trees {
		s += m.LearningRate * m.Trees[i].Eval(x)
	}
	return sigmoid(s)
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
