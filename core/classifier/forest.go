package classifier

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Forest is a bagged ensemble of classification trees. Leaves hold the share
// of congested samples that reached them.
type Forest struct {
	Trees []Tree `json:"trees"`
}

func fitForest(ctx context.Context, x [][]float64, y []int, p Params, seed uint64) (*Forest, error) {
	target := toFloat(y)
	maxFeatures := int(math.Sqrt(float64(len(x[0]))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	trees := make([]Tree, p.Trees)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := rand.New(rand.NewPCG(seed, uint64(t)))
			sample := make([]int, len(x))
			for i := range sample {
				sample[i] = r.IntN(len(x))
			}
			b := &treeBuilder{
				x:           x,
				target:      target,
				maxDepth:    p.MaxDepth,
				minSplit:    p.MinSamplesSplit,
				maxFeatures: maxFeatures,
				rand:        r,
				leaf:        func(idx []int) float64 { return meanOf(target, idx) },
			}
			trees[t] = b.build(sample)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Forest{Trees: trees}, nil
}

func (f *Forest) probability(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Eval(x)
	}
	return sum / float64(len(f.Trees))
}

func toFloat(y []int) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = float64(v)
	}
	return out
}

func meanOf(v []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += v[i]
	}
	return sum / float64(len(idx))
}
