// Package boost implements squared-error gradient boosted trees with
// held-out early stopping.
package boost

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"MDK/pkg/ml/tree"
)

type Options struct {
	Rounds              int
	Eta                 float64
	MaxDepth            int
	Lambda              float64
	MinChildWeight      int
	EarlyStoppingRounds int
}

func DefaultOptions() Options {
	return Options{Rounds: 100, Eta: 0.3, MaxDepth: 6, Lambda: 1, MinChildWeight: 1, EarlyStoppingRounds: 10}
}

type Regressor struct {
	Base          float64
	Eta           float64
	Trees         []*tree.Regressor
	BestIteration int
	BestScore     float64
}

// Fit boosts on (x, y). When xVal is non-nil, training stops once the
// validation RMSE has not improved for EarlyStoppingRounds rounds and
// prediction uses the best round only.
func Fit(x mat.Matrix, y []float64, xVal mat.Matrix, yVal []float64, opts Options) (*Regressor, error) {
	n, _ := x.Dims()
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("boost: %d rows for %d targets", n, len(y))
	}
	if opts.Rounds <= 0 || opts.Eta <= 0 {
		return nil, fmt.Errorf("boost: rounds and eta must be positive")
	}
	base := 0.0
	for _, v := range y {
		base += v
	}
	base /= float64(n)
	m := &Regressor{Base: base, Eta: opts.Eta, BestIteration: -1, BestScore: math.Inf(1)}

	cols := tree.Columns(x)
	rows := make([]int, n)
	pred := make([]float64, n)
	for i := range rows {
		rows[i] = i
		pred[i] = base
	}
	var valCols [][]float64
	var valPred []float64
	if xVal != nil {
		valCols = tree.Columns(xVal)
		valPred = make([]float64, len(yVal))
		for i := range valPred {
			valPred[i] = base
		}
	}
	topts := tree.Options{MaxDepth: opts.MaxDepth, Lambda: opts.Lambda, MinSamplesLeaf: opts.MinChildWeight}
	resid := make([]float64, n)
	row := make([]float64, len(cols))
	since := 0
	for round := 0; round < opts.Rounds; round++ {
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		t := tree.Fit(cols, resid, rows, topts, nil)
		m.Trees = append(m.Trees, t)
		for i := range pred {
			pred[i] += opts.Eta * t.PredictRow(rowOf(cols, i, row))
		}
		if valCols == nil {
			m.BestIteration = round
			continue
		}
		se := 0.0
		for i := range valPred {
			valPred[i] += opts.Eta * t.PredictRow(rowOf(valCols, i, row))
			d := valPred[i] - yVal[i]
			se += d * d
		}
		rmse := math.Sqrt(se / float64(len(valPred)))
		if rmse < m.BestScore {
			m.BestScore, m.BestIteration, since = rmse, round, 0
			continue
		}
		since++
		if opts.EarlyStoppingRounds > 0 && since >= opts.EarlyStoppingRounds {
			break
		}
	}
	return m, nil
}

func rowOf(cols [][]float64, i int, buf []float64) []float64 {
	for j := range cols {
		buf[j] = cols[j][i]
	}
	return buf
}

func (m *Regressor) PredictRow(row []float64) float64 {
	v := m.Base
	for k := 0; k <= m.BestIteration && k < len(m.Trees); k++ {
		v += m.Eta * m.Trees[k].PredictRow(row)
	}
	return v
}

func (m *Regressor) Predict(x mat.Matrix) []float64 {
	r, c := x.Dims()
	out := make([]float64, r)
	row := make([]float64, c)
	for i := range out {
		mat.Row(row, i, x)
		out[i] = m.PredictRow(row)
	}
	return out
}
