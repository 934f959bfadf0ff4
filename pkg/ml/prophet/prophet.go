// Package prophet fits a decomposable trend plus seasonality model in the
// style of Facebook Prophet, using penalised least squares instead of
// MAP sampling.
package prophet

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"MDK/pkg/ml/linreg"
)

const (
	GrowthLinear   = "linear"
	GrowthLogistic = "logistic"

	ModeAdditive       = "additive"
	ModeMultiplicative = "multiplicative"
)

var ErrTooShort = errors.New("prophet: need at least two distinct dates")

type Config struct {
	Growth                string
	ChangepointPriorScale float64
	NChangepoints         int
	ChangepointRange      float64
	SeasonalityMode       string
	Yearly                bool
	Weekly                bool
	Daily                 bool
}

// Seasonality is a Fourier series with the given period in days.
type Seasonality struct {
	Name   string
	Period float64
	Order  int
}

// Model is a fitted trend/seasonality decomposition. Times are scaled to
// [0,1] over the history and values by YScale.
type Model struct {
	Cfg           Config
	Start         time.Time
	TScale        float64 // seconds spanned by the history
	YScale        float64
	Changepoints  []float64
	Trend         []float64 // m, k, delta_1..delta_S
	Seasonalities []Seasonality
	Beta          []float64
	HistoryCap    float64
	HistoryFloor  float64
	LastDate      time.Time
}

func (m *Model) scaleT(d time.Time) float64 {
	return d.Sub(m.Start).Seconds() / m.TScale
}

// Fit estimates the trend first and the seasonal terms on what the trend
// leaves: residuals in additive mode, relative deviations in
// multiplicative mode. Logistic growth fits the trend in logit space
// against cap = 1.1*max(y) and floor 0.
func Fit(dates []time.Time, y []float64, cfg Config) (*Model, error) {
	if len(dates) != len(y) {
		return nil, fmt.Errorf("prophet: %d dates for %d values", len(dates), len(y))
	}
	if len(y) < 2 || !dates[len(dates)-1].After(dates[0]) {
		return nil, ErrTooShort
	}
	if cfg.ChangepointRange <= 0 || cfg.ChangepointRange > 1 {
		cfg.ChangepointRange = 0.8
	}
	if cfg.ChangepointPriorScale <= 0 {
		cfg.ChangepointPriorScale = 0.05
	}
	m := &Model{
		Cfg:      cfg,
		Start:    dates[0],
		TScale:   dates[len(dates)-1].Sub(dates[0]).Seconds(),
		LastDate: dates[len(dates)-1],
	}
	m.YScale = floats.Max(absAll(y))
	if m.YScale == 0 {
		m.YScale = 1
	}
	ys := make([]float64, len(y))
	floats.ScaleTo(ys, 1/m.YScale, y)
	ts := make([]float64, len(dates))
	for i, d := range dates {
		ts[i] = m.scaleT(d)
	}
	m.Changepoints = changepoints(ts, cfg.NChangepoints, cfg.ChangepointRange)
	m.Seasonalities = seasonalities(cfg)

	target := ys
	if cfg.Growth == GrowthLogistic {
		m.HistoryCap = 1.1 * floats.Max(y)
		m.HistoryFloor = 0
		target = make([]float64, len(ys))
		for i, v := range y {
			target[i] = logit(ratio(v, m.HistoryFloor, m.HistoryCap))
		}
	}
	design := m.trendDesign(ts)
	pen := make([]float64, len(m.Changepoints)+2)
	pen[0], pen[1] = 1e-10, 1e-10
	for j := 2; j < len(pen); j++ {
		pen[j] = 0.01 / (cfg.ChangepointPriorScale * cfg.ChangepointPriorScale)
	}
	var err error
	if m.Trend, err = linreg.Ridge(design, target, pen); err != nil {
		return nil, fmt.Errorf("prophet: trend: %w", err)
	}
	if len(m.Seasonalities) == 0 {
		return m, nil
	}

	trend := m.trendAt(ts, m.HistoryCap/m.YScale, m.HistoryFloor/m.YScale)
	resid := make([]float64, 0, len(ys))
	rows := make([]int, 0, len(ys))
	for i := range ys {
		if cfg.SeasonalityMode == ModeMultiplicative {
			if math.Abs(trend[i]) < 1e-9 {
				continue
			}
			resid = append(resid, ys[i]/trend[i]-1)
		} else {
			resid = append(resid, ys[i]-trend[i])
		}
		rows = append(rows, i)
	}
	sub := make([]time.Time, len(rows))
	for k, i := range rows {
		sub[k] = dates[i]
	}
	sd := m.seasonalDesign(sub)
	_, c := sd.Dims()
	spen := make([]float64, c)
	for j := range spen {
		spen[j] = 1e-4
	}
	if m.Beta, err = linreg.Ridge(sd, resid, spen); err != nil {
		return nil, fmt.Errorf("prophet: seasonality: %w", err)
	}
	return m, nil
}

// Predict evaluates the model on dates. cap and floor only matter for
// logistic growth.
func (m *Model) Predict(dates []time.Time, capacity, floor float64) []float64 {
	ts := make([]float64, len(dates))
	for i, d := range dates {
		ts[i] = m.scaleT(d)
	}
	trend := m.trendAt(ts, capacity/m.YScale, floor/m.YScale)
	var seas []float64
	if len(m.Beta) > 0 {
		seas = make([]float64, len(dates))
		sd := m.seasonalDesign(dates)
		for i := range seas {
			seas[i] = floats.Dot(sd.RawRowView(i), m.Beta)
		}
	}
	out := make([]float64, len(dates))
	for i := range out {
		v := trend[i]
		if seas != nil {
			if m.Cfg.SeasonalityMode == ModeMultiplicative {
				v *= 1 + seas[i]
			} else {
				v += seas[i]
			}
		}
		out[i] = v * m.YScale
	}
	return out
}

func (m *Model) trendAt(ts []float64, capacity, floor float64) []float64 {
	design := m.trendDesign(ts)
	out := make([]float64, len(ts))
	for i := range out {
		out[i] = floats.Dot(design.RawRowView(i), m.Trend)
		if m.Cfg.Growth == GrowthLogistic {
			out[i] = floor + (capacity-floor)*sigmoid(out[i])
		}
	}
	return out
}

func changepoints(ts []float64, n int, rng float64) []float64 {
	hist := int(math.Floor(float64(len(ts)) * rng))
	if n > hist-1 {
		n = hist - 1
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for k := 1; k <= n; k++ {
		idx := int(math.Round(float64(k) * float64(hist-1) / float64(n)))
		out[k-1] = ts[idx]
	}
	return out
}

func seasonalities(cfg Config) []Seasonality {
	var out []Seasonality
	if cfg.Yearly {
		out = append(out, Seasonality{Name: "yearly", Period: 365.25, Order: 10})
	}
	if cfg.Weekly {
		out = append(out, Seasonality{Name: "weekly", Period: 7, Order: 3})
	}
	if cfg.Daily {
		out = append(out, Seasonality{Name: "daily", Period: 1, Order: 4})
	}
	return out
}

func absAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = math.Abs(v)
	}
	return out
}

func ratio(v, floor, capacity float64) float64 {
	r := (v - floor) / (capacity - floor)
	return math.Min(math.Max(r, 1e-4), 1-1e-4)
}

func logit(p float64) float64 { return math.Log(p / (1 - p)) }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
