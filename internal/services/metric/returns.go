package metric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Returns are simple period returns c[i]/c[i-1] - 1.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out
}

func excess(returns []float64) []float64 {
	out := make([]float64, len(returns))
	for i, r := range returns {
		out[i] = r - RiskFreeRate/TradingDays
	}
	return out
}

// stdDev is the sample standard deviation, NaN below two observations.
// A constant sample is exactly 0 regardless of rounding in the mean.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	for _, x := range xs[1:] {
		if x != xs[0] {
			return stat.StdDev(xs, nil)
		}
	}
	return 0
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}
