// Package arima fits ARIMA(p,d,q) models by conditional sum of squares.
package arima

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

type Order struct {
	P, D, Q int
}

func (o Order) String() string { return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q) }

// Model is a fitted ARIMA. Mean is only estimated when D == 0. Series keeps
// the training levels and Resid the in-sample innovations of the
// differenced series, which together are the forecasting state.
type Model struct {
	Order  Order
	Mean   float64
	AR     []float64
	MA     []float64
	Sigma2 float64
	LogLik float64
	AIC    float64
	NObs   int
	Series []float64
	Resid  []float64
}

const penalty = 1e300

// Fit estimates the model on levels. maxIter bounds Nelder-Mead major
// iterations per free parameter.
func Fit(series []float64, order Order, maxIter int) (*Model, error) {
	if order.P < 0 || order.D < 0 || order.Q < 0 {
		return nil, fmt.Errorf("arima: invalid order %s", order)
	}
	w := diff(series, order.D)
	withMean := order.D == 0
	k := order.P + order.Q
	if withMean {
		k++
	}
	if len(w)-order.P <= k+1 {
		return nil, ErrTooShort
	}
	m := &Model{Order: order, Series: append([]float64(nil), series...)}

	x0 := make([]float64, k)
	if withMean {
		x0[0] = mean(w)
	}
	params := x0
	if k > 0 {
		if maxIter <= 0 {
			maxIter = 100
		}
		obj := func(x []float64) float64 {
			mu, ar, ma := m.unpack(x)
			if !stationary(ar) || !stationary(negate(ma)) {
				return penalty
			}
			sse, _ := css(w, mu, ar, ma)
			if math.IsNaN(sse) || math.IsInf(sse, 0) {
				return penalty
			}
			return sse
		}
		res, err := optimize.Minimize(optimize.Problem{Func: obj}, x0, &optimize.Settings{MajorIterations: maxIter * k}, &optimize.NelderMead{})
		if res == nil || res.F >= penalty || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
			return nil, fmt.Errorf("arima%s: optimisation failed: %v", order, err)
		}
		params = res.X
	}
	mu, ar, ma := m.unpack(params)
	if !stationary(ar) {
		return nil, fmt.Errorf("arima%s: non-stationary AR solution", order)
	}
	if !stationary(negate(ma)) {
		return nil, fmt.Errorf("arima%s: non-invertible MA solution", order)
	}
	m.Mean, m.AR, m.MA = mu, ar, ma
	sse, resid := css(w, mu, ar, ma)
	n := float64(len(w) - order.P)
	m.NObs = len(w) - order.P
	m.Resid = resid
	m.Sigma2 = sse / n
	if m.Sigma2 <= 0 {
		m.Sigma2 = 1e-12
	}
	m.LogLik = -n / 2 * (math.Log(2*math.Pi*m.Sigma2) + 1)
	m.AIC = 2*float64(k+1) - 2*m.LogLik
	return m, nil
}

func (m *Model) unpack(x []float64) (float64, []float64, []float64) {
	i := 0
	mu := 0.0
	if m.Order.D == 0 {
		mu = x[0]
		i = 1
	}
	ar := append([]float64(nil), x[i:i+m.Order.P]...)
	ma := append([]float64(nil), x[i+m.Order.P:i+m.Order.P+m.Order.Q]...)
	return mu, ar, ma
}

// css returns the conditional sum of squares and residuals, with the first
// p residuals fixed at zero.
func css(w []float64, mu float64, ar, ma []float64) (float64, []float64) {
	p := len(ar)
	e := make([]float64, len(w))
	sse := 0.0
	for t := p; t < len(w); t++ {
		pred := mu
		for i, phi := range ar {
			pred += phi * (w[t-1-i] - mu)
		}
		for j, theta := range ma {
			if t-1-j >= 0 {
				pred += theta * e[t-1-j]
			}
		}
		e[t] = w[t] - pred
		sse += e[t] * e[t]
	}
	return sse, e
}

// Forecast predicts steps levels past the end of the training series.
func (m *Model) Forecast(steps int) []float64 {
	if steps <= 0 {
		return nil
	}
	w := diff(m.Series, m.Order.D)
	e := append([]float64(nil), m.Resid...)
	out := make([]float64, steps)
	for h := 0; h < steps; h++ {
		t := len(w)
		pred := m.Mean
		for i, phi := range m.AR {
			if t-1-i >= 0 {
				pred += phi * (w[t-1-i] - m.Mean)
			}
		}
		for j, theta := range m.MA {
			if t-1-j >= 0 {
				pred += theta * e[t-1-j]
			}
		}
		w = append(w, pred)
		e = append(e, 0)
		out[h] = pred
	}
	return integrate(out, m.Series, m.Order.D)
}

// Last is the final training level.
func (m *Model) Last() float64 { return m.Series[len(m.Series)-1] }

func integrate(diffs, history []float64, d int) []float64 {
	if d == 0 {
		return diffs
	}
	lasts := make([]float64, d)
	level := history
	for k := 0; k < d; k++ {
		lasts[k] = level[len(level)-1]
		level = diff(level, 1)
	}
	out := make([]float64, len(diffs))
	for i, v := range diffs {
		for k := d - 1; k >= 0; k-- {
			v += lasts[k]
			lasts[k] = v
		}
		out[i] = v
	}
	return out
}

// stationary reports whether every root of 1 - c1 z - ... - cp z^p lies
// outside the unit circle, via the companion matrix eigenvalues.
func stationary(c []float64) bool {
	p := len(c)
	switch p {
	case 0:
		return true
	case 1:
		return math.Abs(c[0]) < 1
	}
	comp := mat.NewDense(p, p, nil)
	for j, v := range c {
		comp.Set(0, j, v)
	}
	for i := 1; i < p; i++ {
		comp.Set(i, i-1, 1)
	}
	var eig mat.Eigen
	if !eig.Factorize(comp, mat.EigenNone) {
		return false
	}
	for _, v := range eig.Values(nil) {
		if cmplx.Abs(v) >= 1 {
			return false
		}
	}
	return true
}

func negate(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = -v
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range xs {
		s += v
	}
	return s / float64(len(xs))
}
