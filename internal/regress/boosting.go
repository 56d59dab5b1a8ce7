package regress

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// minGain is the smallest squared-error reduction that justifies a split.
const minGain = 1e-12

// Node is one entry of a flattened regression tree. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// GradientBoosting fits an additive ensemble of depth-limited regression
// trees on squared loss, starting from the target mean.
type GradientBoosting struct {
	Params    Params  `json:"params"`
	Base      float64 `json:"base"`
	Trees     []Tree  `json:"trees"`
	NFeatures int     `json:"n_features"`
}

func NewGradientBoosting(p Params) *GradientBoosting {
	return &GradientBoosting{Params: p}
}

func (m *GradientBoosting) Kind() Kind { return KindGradientBoosting }

func (m *GradientBoosting) NumFeatures() int { return m.NFeatures }

// Fit checks ctx between boosting rounds.
func (m *GradientBoosting) Fit(ctx context.Context, X [][]float64, y []float64) error {
	n, p, err := checkShape(X, y)
	if err != nil {
		return err
	}
	if err := m.Params.Validate(KindGradientBoosting); err != nil {
		return err
	}

	base := stat.Mean(y, nil)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	residual := make([]float64, n)
	trees := make([]Tree, 0, m.Params.NEstimators)
	b := &treeBuilder{X: X, maxDepth: m.Params.MaxDepth, minLeaf: m.Params.MinSamplesLeaf, nFeatures: p}

	for range m.Params.NEstimators {
		if err := ctx.Err(); err != nil {
			return err
		}
		floats.SubTo(residual, y, pred)
		tree := b.build(residual)
		for i, row := range X {
			pred[i] += m.Params.LearningRate * tree.Predict(row)
		}
		trees = append(trees, tree)
	}
	if !isFiniteSlice(pred) {
		return fmt.Errorf("%w: non-finite training predictions", ErrNotConverged)
	}

	m.Base = base
	m.Trees = trees
	m.NFeatures = p
	return nil
}

func (m *GradientBoosting) Predict(x []float64) float64 {
	out := m.Base
	for _, t := range m.Trees {
		out += m.Params.LearningRate * t.Predict(x)
	}
	return out
}

type treeBuilder struct {
	X         [][]float64
	maxDepth  int
	minLeaf   int
	nFeatures int

	target []float64
	nodes  []Node
}

func (b *treeBuilder) build(target []float64) Tree {
	b.target = target
	b.nodes = nil
	idx := make([]int, len(target))
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	at        int // position in the sorted index slice
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.mean(idx)})
	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf {
		return id
	}

	best := split{feature: -1, gain: minGain}
	var bestOrder []int
	for f := range b.nFeatures {
		order := slices.Clone(idx)
		slices.SortStableFunc(order, func(a, c int) int {
			return cmp.Compare(b.X[a][f], b.X[c][f])
		})
		if s, ok := b.bestSplit(order, f); ok && s.gain > best.gain {
			best = s
			bestOrder = order
		}
	}
	if best.feature < 0 {
		return id
	}

	left := b.grow(bestOrder[:best.at], depth+1)
	right := b.grow(bestOrder[best.at:], depth+1)
	b.nodes[id] = Node{Feature: best.feature, Threshold: best.threshold, Left: left, Right: right, Value: b.nodes[id].Value}
	return id
}

// bestSplit scans split positions of order, sorted by feature f, and keeps
// the first position with the highest squared-error reduction.
func (b *treeBuilder) bestSplit(order []int, f int) (split, bool) {
	n := len(order)
	var total float64
	for _, i := range order {
		total += b.target[i]
	}
	parent := total * total / float64(n)

	best := split{feature: -1}
	found := false
	var left float64
	for at := 1; at < n; at++ {
		left += b.target[order[at-1]]
		if at < b.minLeaf || n-at < b.minLeaf {
			continue
		}
		lo, hi := b.X[order[at-1]][f], b.X[order[at]][f]
		if lo == hi {
			continue
		}
		right := total - left
		gain := left*left/float64(at) + right*right/float64(n-at) - parent
		if !found || gain > best.gain {
			best = split{feature: f, threshold: lo + (hi-lo)/2, gain: gain, at: at}
			found = true
		}
	}
	return best, found
}

func (b *treeBuilder) mean(idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += b.target[i]
	}
	return s / float64(len(idx))
}

// SplitShare is the fraction of ensemble splits made on each feature.
// All zeros when no tree split.
func (m *GradientBoosting) SplitShare() []float64 {
	out := make([]float64, m.NFeatures)
	counts := make([]float64, m.NFeatures)
	for _, t := range m.Trees {
		for _, n := range t.Nodes {
			if n.Feature >= 0 {
				counts[n.Feature]++
			}
		}
	}
	total := floats.Sum(counts)
	if total == 0 {
		return out
	}
	floats.ScaleTo(out, 1/total, counts)
	return out
}
