// Package forest implements bootstrap-aggregated regression trees.
package forest

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"MDK/pkg/ml/tree"
)

type Options struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	Seed            int64
	Workers         int
}

type Regressor struct {
	Trees []*tree.Regressor
}

// Fit grows the trees in parallel. Every tree draws its seed from the
// master seed up front, so results do not depend on scheduling.
func Fit(ctx context.Context, x mat.Matrix, y []float64, opts Options) (*Regressor, error) {
	n, _ := x.Dims()
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("forest: %d rows for %d targets", n, len(y))
	}
	if opts.NEstimators <= 0 {
		return nil, fmt.Errorf("forest: n_estimators must be positive, got %d", opts.NEstimators)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	cols := tree.Columns(x)
	master := rand.New(rand.NewSource(opts.Seed))
	seeds := make([]int64, opts.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}
	topts := tree.Options{
		MaxDepth:        opts.MaxDepth,
		MinSamplesSplit: opts.MinSamplesSplit,
		MinSamplesLeaf:  opts.MinSamplesLeaf,
		MaxFeatures:     opts.MaxFeatures,
	}

	f := &Regressor{Trees: make([]*tree.Regressor, opts.NEstimators)}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range f.Trees {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			rows := make([]int, n)
			for k := range rows {
				if opts.Bootstrap {
					rows[k] = rng.Intn(n)
				} else {
					rows[k] = k
				}
			}
			f.Trees[i] = tree.Fit(cols, y, rows, topts, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Regressor) PredictRow(row []float64) float64 {
	s := 0.0
	for _, t := range f.Trees {
		s += t.PredictRow(row)
	}
	return s / float64(len(f.Trees))
}

func (f *Regressor) Predict(x mat.Matrix) []float64 {
	r, c := x.Dims()
	out := make([]float64, r)
	row := make([]float64, c)
	for i := range out {
		mat.Row(row, i, x)
		out[i] = f.PredictRow(row)
	}
	return out
}
