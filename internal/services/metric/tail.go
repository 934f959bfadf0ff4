package metric

import (
	"math"
	"sort"

	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
)

func init() {
	Register("value_at_risk", func() service.Metric { return ValueAtRisk{Confidence: ConfidenceLevel} })
	Register("expected_shortfall", func() service.Metric { return ExpectedShortfall{Confidence: ConfidenceLevel} })
}

// quantile interpolates linearly between order statistics at (n-1)*q.
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	h := float64(len(s)-1) * q
	lo := int(math.Floor(h))
	hi := min(lo+1, len(s)-1)
	return s[lo] + (h-float64(lo))*(s[hi]-s[lo])
}

// ValueAtRisk is the Confidence quantile of period returns.
type ValueAtRisk struct {
	Confidence float64
}

func (ValueAtRisk) Name() string { return "value_at_risk" }

func (v ValueAtRisk) Calculate(s models.PriceSeries) float64 {
	return quantile(Returns(s.Close), v.Confidence)
}

// ExpectedShortfall averages the returns strictly below the VaR, or
// returns the VaR when none are.
type ExpectedShortfall struct {
	Confidence float64
}

func (ExpectedShortfall) Name() string { return "expected_shortfall" }

func (e ExpectedShortfall) Calculate(s models.PriceSeries) float64 {
	rs := Returns(s.Close)
	v := quantile(rs, e.Confidence)
	var below []float64
	for _, r := range rs {
		if r < v {
			below = append(below, r)
		}
	}
	if len(below) == 0 {
		return v
	}
	return mean(below)
}
