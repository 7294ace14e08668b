package classifier

import (
	"math"
	"math/rand/v2"
	"sort"
)

func byClass(y []int) [][]int {
	groups := map[int][]int{}
	for i, v := range y {
		groups[v] = append(groups[v], i)
	}
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([][]int, len(keys))
	for i, k := range keys {
		out[i] = groups[k]
	}
	return out
}

// stratifiedSplit holds out testFraction of every class.
func stratifiedSplit(y []int, testFraction float64, r *rand.Rand) (train, test []int) {
	for _, idx := range byClass(y) {
		r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		n := int(math.Round(float64(len(idx)) * testFraction))
		if n >= len(idx) {
			n = len(idx) - 1
		}
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// stratifiedFolds deals the shuffled members of every class round-robin
// into k folds.
func stratifiedFolds(y []int, k int, r *rand.Rand) [][]int {
	folds := make([][]int, k)
	next := 0
	for _, idx := range byClass(y) {
		r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for _, i := range idx {
			folds[next%k] = append(folds[next%k], i)
			next++
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

func subset[T any](v []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

func complement(n int, exclude []int) []int {
	skip := make(map[int]struct{}, len(exclude))
	for _, i := range exclude {
		skip[i] = struct{}{}
	}
	out := make([]int, 0, n-len(exclude))
	for i := 0; i < n; i++ {
		if _, ok := skip[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}
