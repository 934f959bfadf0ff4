package prophet

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// trendDesign has columns 1, t and (t - s_j)+ for every changepoint.
func (m *Model) trendDesign(ts []float64) *mat.Dense {
	x := mat.NewDense(len(ts), 2+len(m.Changepoints), nil)
	for i, t := range ts {
		x.Set(i, 0, 1)
		x.Set(i, 1, t)
		for j, s := range m.Changepoints {
			if t > s {
				x.Set(i, 2+j, t-s)
			}
		}
	}
	return x
}

// seasonalDesign has sin/cos pairs per seasonality and order, evaluated on
// days since the Unix epoch.
func (m *Model) seasonalDesign(dates []time.Time) *mat.Dense {
	cols := 0
	for _, s := range m.Seasonalities {
		cols += 2 * s.Order
	}
	x := mat.NewDense(len(dates), cols, nil)
	for i, d := range dates {
		days := float64(d.Unix()) / 86400
		j := 0
		for _, s := range m.Seasonalities {
			for k := 1; k <= s.Order; k++ {
				arg := 2 * math.Pi * float64(k) * days / s.Period
				x.Set(i, j, math.Sin(arg))
				x.Set(i, j+1, math.Cos(arg))
				j += 2
			}
		}
	}
	return x
}
