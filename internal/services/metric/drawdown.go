package metric

import (
	"math"

	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
)

func init() {
	Register("maximum_drawdown", func() service.Metric { return MaximumDrawdown{} })
	Register("mdd_duration", func() service.Metric { return MDDDuration{} })
}

// drawdowns returns c/cummax(c) - 1 per row.
func drawdowns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	peak := math.Inf(-1)
	for i, c := range closes {
		if c > peak {
			peak = c
		}
		out[i] = c/peak - 1
	}
	return out
}

func maxDrawdown(closes []float64) float64 {
	if len(closes) == 0 {
		return math.NaN()
	}
	low := 0.0
	for _, d := range drawdowns(closes) {
		low = math.Min(low, d)
	}
	return low
}

// MaximumDrawdown is the largest relative peak-to-trough decline, as a
// non-positive fraction.
type MaximumDrawdown struct{}

func (MaximumDrawdown) Name() string { return "maximum_drawdown" }

func (MaximumDrawdown) Calculate(s models.PriceSeries) float64 { return maxDrawdown(s.Close) }

// MDDDuration is the longest run of consecutive rows below the running peak.
type MDDDuration struct{}

func (MDDDuration) Name() string { return "mdd_duration" }

func (MDDDuration) Calculate(s models.PriceSeries) float64 {
	longest, run := 0, 0
	for _, d := range drawdowns(s.Close) {
		if d < 0 {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return float64(longest)
}
