package classifier

import (
	"math/rand/v2"
	"sort"
)

const leafFeature = -1

// Node is one entry of a flattened binary tree. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a binary decision tree stored as a flat node slice; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Eval returns the value of the leaf reached by x.
func (t *Tree) Eval(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == leafFeature {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) valid(width int) bool {
	if len(t.Nodes) == 0 {
		return false
	}
	for i, n := range t.Nodes {
		if n.Feature == leafFeature {
			continue
		}
		// children always follow their parent, which rules out cycles
		if n.Feature < 0 || n.Feature >= width ||
			n.Left <= i || n.Left >= len(t.Nodes) ||
			n.Right <= i || n.Right >= len(t.Nodes) {
			return false
		}
	}
	return true
}

// treeBuilder grows a CART tree minimising the weighted variance of target.
// For 0/1 targets this is proportional to the Gini impurity.
type treeBuilder struct {
	x           [][]float64
	target      []float64
	maxDepth    int
	minSplit    int
	maxFeatures int
	rand        *rand.Rand
	leaf        func(idx []int) float64

	nodes []Node
	order []int
}

func (b *treeBuilder) build(idx []int) Tree {
	b.nodes = b.nodes[:0]
	b.order = make([]int, len(idx))
	b.grow(idx, 0)
	return Tree{Nodes: append([]Node(nil), b.nodes...)}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leafFeature})
	if len(idx) < b.minSplit || (b.maxDepth > 0 && depth >= b.maxDepth) || b.pure(idx) {
		b.nodes[id].Value = b.leaf(idx)
		return id
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[id].Value = b.leaf(idx)
		return id
	}
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.target[idx[0]]
	for _, i := range idx[1:] {
		if b.target[i] != first {
			return false
		}
	}
	return true
}

func (b *treeBuilder) candidates() []int {
	width := len(b.x[0])
	if b.maxFeatures <= 0 || b.maxFeatures >= width || b.rand == nil {
		all := make([]int, width)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rand.Perm(width)[:b.maxFeatures]
}

// bestSplit scans every threshold of the candidate features and returns the
// split with the lowest summed squared error.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	var total, totalSq float64
	for _, i := range idx {
		total += b.target[i]
		totalSq += b.target[i] * b.target[i]
	}
	n := float64(len(idx))
	best := totalSq - total*total/n
	bestFeature, bestThreshold, found := 0, 0.0, false

	order := b.order[:len(idx)]
	for _, f := range b.candidates() {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })
		var sum, sumSq float64
		for k := 0; k < len(order)-1; k++ {
			v := b.target[order[k]]
			sum += v
			sumSq += v * v
			cur, next := b.x[order[k]][f], b.x[order[k+1]][f]
			if cur == next {
				continue
			}
			nl := float64(k + 1)
			nr := n - nl
			rs := total - sum
			sse := (sumSq - sum*sum/nl) + (totalSq - sumSq - rs*rs/nr)
			if sse < best-1e-12 {
				best = sse
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
