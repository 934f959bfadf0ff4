// Package tree implements CART regression trees. Leaves carry the
// L2-shrunk mean sum/(n+Lambda), the same form gradient boosting uses.
package tree

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

type Options struct {
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 means every feature
	Lambda          float64
	MinGain         float64
}

func (o Options) withDefaults() Options {
	if o.MinSamplesSplit < 2 {
		o.MinSamplesSplit = 2
	}
	if o.MinSamplesLeaf < 1 {
		o.MinSamplesLeaf = 1
	}
	return o
}

// Node is a flat tree node. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

type Regressor struct {
	Nodes []Node
}

// Columns copies a matrix into column-major slices.
func Columns(x mat.Matrix) [][]float64 {
	r, c := x.Dims()
	out := make([][]float64, c)
	for j := range out {
		out[j] = make([]float64, r)
		for i := 0; i < r; i++ {
			out[j][i] = x.At(i, j)
		}
	}
	return out
}

type builder struct {
	cols [][]float64
	y    []float64
	opts Options
	rng  *rand.Rand
	t    *Regressor
}

// Fit grows a tree over the given rows (repeats allowed, as in a bootstrap
// sample). rng only drives feature subsampling and may be nil when
// MaxFeatures is 0.
func Fit(cols [][]float64, y []float64, rows []int, opts Options, rng *rand.Rand) *Regressor {
	b := &builder{cols: cols, y: y, opts: opts.withDefaults(), rng: rng, t: &Regressor{}}
	b.grow(append([]int(nil), rows...), 0)
	return b.t
}

func (b *builder) leafValue(rows []int) float64 {
	s := 0.0
	for _, r := range rows {
		s += b.y[r]
	}
	return s / (float64(len(rows)) + b.opts.Lambda)
}

func (b *builder) grow(rows []int, depth int) int {
	id := len(b.t.Nodes)
	b.t.Nodes = append(b.t.Nodes, Node{Feature: -1, Value: b.leafValue(rows)})
	if len(rows) < b.opts.MinSamplesSplit || (b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth) {
		return id
	}
	feat, thr, ok := b.bestSplit(rows)
	if !ok {
		return id
	}
	var left, right []int
	for _, r := range rows {
		if b.cols[feat][r] <= thr {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	l := b.grow(left, depth+1)
	rg := b.grow(right, depth+1)
	b.t.Nodes[id] = Node{Feature: feat, Threshold: thr, Left: l, Right: rg}
	return id
}

func (b *builder) features() []int {
	n := len(b.cols)
	if b.opts.MaxFeatures <= 0 || b.opts.MaxFeatures >= n || b.rng == nil {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return b.rng.Perm(n)[:b.opts.MaxFeatures]
}

func (b *builder) bestSplit(rows []int) (int, float64, bool) {
	lambda := b.opts.Lambda
	total := 0.0
	for _, r := range rows {
		total += b.y[r]
	}
	n := float64(len(rows))
	parent := total * total / (n + lambda)

	bestGain, bestFeat, bestThr := b.opts.MinGain, -1, 0.0
	sorted := make([]int, len(rows))
	minLeaf := b.opts.MinSamplesLeaf
	for _, f := range b.features() {
		col := b.cols[f]
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool { return col[sorted[i]] < col[sorted[j]] })
		sl := 0.0
		for i := 0; i < len(sorted)-1; i++ {
			sl += b.y[sorted[i]]
			nl := i + 1
			if nl < minLeaf || len(sorted)-nl < minLeaf {
				continue
			}
			lo, hi := col[sorted[i]], col[sorted[i+1]]
			if lo == hi {
				continue
			}
			sr := total - sl
			fl, fr := float64(nl), n-float64(nl)
			gain := sl*sl/(fl+lambda) + sr*sr/(fr+lambda) - parent
			if gain > bestGain+1e-12 {
				bestGain, bestFeat, bestThr = gain, f, lo+(hi-lo)/2
			}
		}
	}
	return bestFeat, bestThr, bestFeat >= 0
}

func (t *Regressor) PredictRow(row []float64) float64 {
	i := 0
	for {
		nd := t.Nodes[i]
		if nd.Feature < 0 {
			return nd.Value
		}
		if row[nd.Feature] <= nd.Threshold {
			i = nd.Left
		} else {
			i = nd.Right
		}
	}
}

func (t *Regressor) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		nd := t.Nodes[i]
		if nd.Feature < 0 {
			return 0
		}
		return 1 + max(walk(nd.Left), walk(nd.Right))
	}
	return walk(0)
}
