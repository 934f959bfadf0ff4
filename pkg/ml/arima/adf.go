package arima

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrTooShort is returned for series too short to test or fit.
var ErrTooShort = errors.New("arima: series too short")

// ADFResult is the outcome of an augmented Dickey-Fuller test with a
// constant term.
type ADFResult struct {
	Stat   float64
	PValue float64
	Lag    int
	NObs   int
}

// ADF regresses dy_t on (1, y_{t-1}, dy_{t-1..t-k}), choosing k up to
// 12*(n/100)^(1/4) by AIC, and reports the t statistic of y_{t-1}.
func ADF(y []float64) (ADFResult, error) {
	n := len(y)
	if n < 8 {
		return ADFResult{}, ErrTooShort
	}
	maxLag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	if limit := n/2 - 3; maxLag > limit {
		maxLag = limit
	}
	if maxLag < 0 {
		maxLag = 0
	}
	dy := diff(y, 1)

	best, bestAIC := 0, math.Inf(1)
	for k := 0; k <= maxLag; k++ {
		x, dep := adfDesign(y, dy, k, maxLag)
		_, sse, _, err := ols(x, dep)
		if err != nil {
			continue
		}
		nobs := float64(len(dep))
		aic := nobs*math.Log(sse/nobs) + 2*float64(k+2)
		if aic < bestAIC {
			best, bestAIC = k, aic
		}
	}
	x, dep := adfDesign(y, dy, best, best)
	beta, sse, inv, err := ols(x, dep)
	if err != nil {
		return ADFResult{}, fmt.Errorf("arima: adf regression: %w", err)
	}
	_, c := x.Dims()
	dof := float64(len(dep) - c)
	if dof <= 0 {
		return ADFResult{}, ErrTooShort
	}
	se := math.Sqrt(sse / dof * inv.At(1, 1))
	res := ADFResult{Lag: best, NObs: len(dep)}
	if se == 0 {
		res.Stat = math.Inf(-1)
		if beta[1] >= 0 {
			res.Stat = math.Inf(1)
		}
	} else {
		res.Stat = beta[1] / se
	}
	res.PValue = MacKinnonP(res.Stat)
	return res, nil
}

// adfDesign builds rows for t = start..len(dy)-1.
func adfDesign(y, dy []float64, k, start int) (*mat.Dense, []float64) {
	rows := len(dy) - start
	x := mat.NewDense(rows, k+2, nil)
	dep := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := start + r
		dep[r] = dy[t]
		x.Set(r, 0, 1)
		x.Set(r, 1, y[t])
		for i := 1; i <= k; i++ {
			x.Set(r, 1+i, dy[t-i])
		}
	}
	return x, dep
}

// MacKinnonP approximates the p-value of a constant-only Dickey-Fuller
// statistic (MacKinnon 1994, one series).
func MacKinnonP(tau float64) float64 {
	const (
		tauMax  = 2.74
		tauMin  = -18.83
		tauStar = -1.61
	)
	switch {
	case math.IsNaN(tau):
		return math.NaN()
	case tau > tauMax:
		return 1
	case tau < tauMin:
		return 0
	}
	var z float64
	if tau <= tauStar {
		z = 2.1659 + 1.4412*tau + 0.038269*tau*tau
	} else {
		z = 1.7339 + 0.93202*tau - 0.12745*tau*tau - 0.010368*tau*tau*tau
	}
	return distuv.UnitNormal.CDF(z)
}

// ols returns coefficients, residual sum of squares and (X'X)^-1.
func ols(x *mat.Dense, y []float64) ([]float64, float64, *mat.SymDense, error) {
	r, c := x.Dims()
	if r <= c {
		return nil, 0, nil, ErrTooShort
	}
	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	var ch mat.Cholesky
	if !ch.Factorize(&xtx) {
		return nil, 0, nil, errors.New("arima: singular regression")
	}
	var xty, beta mat.VecDense
	yv := mat.NewVecDense(r, append([]float64(nil), y...))
	xty.MulVec(x.T(), yv)
	if err := ch.SolveVecTo(&beta, &xty); !acceptable(err) {
		return nil, 0, nil, err
	}
	var fit mat.VecDense
	fit.MulVec(x, &beta)
	sse := 0.0
	for i := 0; i < r; i++ {
		d := y[i] - fit.AtVec(i)
		sse += d * d
	}
	var inv mat.SymDense
	if err := ch.InverseTo(&inv); !acceptable(err) {
		return nil, 0, nil, err
	}
	return append([]float64(nil), beta.RawVector().Data...), sse, &inv, nil
}

func diff(xs []float64, d int) []float64 {
	out := append([]float64(nil), xs...)
	for k := 0; k < d && len(out) > 0; k++ {
		for i := 0; i < len(out)-1; i++ {
			out[i] = out[i+1] - out[i]
		}
		out = out[:len(out)-1]
	}
	return out
}

// acceptable tolerates gonum's ill-conditioning warning.
func acceptable(err error) bool {
	if err == nil {
		return true
	}
	_, cond := err.(mat.Condition)
	return cond
}
