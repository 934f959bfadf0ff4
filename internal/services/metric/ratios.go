package metric

import (
	"math"

	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
)

func init() {
	Register("sharpe_ratio", func() service.Metric { return SharpeRatio{} })
	Register("sortino_ratio", func() service.Metric { return SortinoRatio{} })
	Register("calmar_ratio", func() service.Metric { return CalmarRatio{} })
	Register("cagr", func() service.Metric { return CAGR{UseTradingDays: true} })
	Register("volatility", func() service.Metric { return Volatility{} })
}

// SharpeRatio is the annualised mean excess return over its volatility.
type SharpeRatio struct{}

func (SharpeRatio) Name() string { return "sharpe_ratio" }

func (SharpeRatio) Calculate(s models.PriceSeries) float64 {
	ex := excess(Returns(s.Close))
	sd := stdDev(ex)
	if sd == 0 || math.IsNaN(sd) {
		return math.NaN()
	}
	return mean(ex) / sd * math.Sqrt(TradingDays)
}

// RollingSharpe is the windowed (non-annualised) Sharpe ratio aligned to
// the price rows. Rows without a full window, or with zero volatility,
// are NaN.
func RollingSharpe(s models.PriceSeries, window int) []float64 {
	if window < 2 {
		window = WindowSize
	}
	out := make([]float64, len(s.Close))
	for i := range out {
		out[i] = math.NaN()
	}
	ex := excess(Returns(s.Close))
	for end := window; end <= len(ex); end++ {
		w := ex[end-window : end]
		sd := stdDev(w)
		v := mean(w) / sd
		if math.IsInf(v, 0) || sd == 0 {
			continue
		}
		out[end] = v
	}
	return out
}

// SortinoRatio divides the mean excess return by the deviation of the
// negative excess returns.
type SortinoRatio struct{}

func (SortinoRatio) Name() string { return "sortino_ratio" }

func (SortinoRatio) Calculate(s models.PriceSeries) float64 {
	ex := excess(Returns(s.Close))
	var down []float64
	for _, r := range ex {
		if r < 0 {
			down = append(down, r)
		}
	}
	sd := stdDev(down)
	if len(down) == 0 || sd == 0 || math.IsNaN(sd) {
		return math.NaN()
	}
	return mean(ex) / sd
}

// CalmarRatio is the annualised mean return over |maximum drawdown|.
type CalmarRatio struct{}

func (CalmarRatio) Name() string { return "calmar_ratio" }

func (CalmarRatio) Calculate(s models.PriceSeries) float64 {
	mdd := maxDrawdown(s.Close)
	if mdd == 0 || math.IsNaN(mdd) {
		return math.NaN()
	}
	return mean(Returns(s.Close)) * TradingDays / math.Abs(mdd)
}

// CAGR measures the period either as rows/TradingDays or, with
// UseTradingDays off, as calendar days/365 between the first and last date.
type CAGR struct {
	UseTradingDays bool
}

func (CAGR) Name() string { return "cagr" }

func (c CAGR) Calculate(s models.PriceSeries) float64 {
	n := len(s.Close)
	if n == 0 || s.Close[0] == 0 {
		return math.NaN()
	}
	var years float64
	if c.UseTradingDays {
		years = float64(n) / TradingDays
	} else {
		if len(s.Dates) != n {
			return math.NaN()
		}
		years = math.Floor(s.Dates[n-1].Sub(s.Dates[0]).Hours()/24) / 365
	}
	if years <= 0 {
		return math.NaN()
	}
	return math.Pow(s.Close[n-1]/s.Close[0], 1/years) - 1
}

// Volatility is the annualised standard deviation of returns.
type Volatility struct{}

func (Volatility) Name() string { return "volatility" }

func (Volatility) Calculate(s models.PriceSeries) float64 {
	return stdDev(Returns(s.Close)) * math.Sqrt(TradingDays)
}
