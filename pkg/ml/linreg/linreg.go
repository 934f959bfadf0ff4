// Package linreg fits ordinary and ridge least squares with gonum.
package linreg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when the normal equations cannot be factorised.
var ErrSingular = errors.New("linreg: singular system")

// Model is a linear predictor y = Coef . x + Intercept.
type Model struct {
	Coef      []float64
	Intercept float64
}

// Fit solves least squares with an intercept. Inputs are centered and
// solved by QR; rank deficient designs fall back to a tiny ridge penalty.
func Fit(x mat.Matrix, y []float64) (*Model, error) {
	r, c := x.Dims()
	if r == 0 || r != len(y) {
		return nil, fmt.Errorf("linreg: %d rows for %d targets", r, len(y))
	}
	means := make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			means[j] += x.At(i, j)
		}
		means[j] /= float64(r)
	}
	ym := 0.0
	for _, v := range y {
		ym += v
	}
	ym /= float64(r)

	xc := mat.NewDense(r, c, nil)
	xc.Apply(func(i, j int, v float64) float64 { return v - means[j] }, x)
	yc := mat.NewVecDense(r, nil)
	for i, v := range y {
		yc.SetVec(i, v-ym)
	}

	coef, err := solveQR(xc, yc)
	if err != nil {
		pen := make([]float64, c)
		for j := range pen {
			pen[j] = 1e-8
		}
		if coef, err = Ridge(xc, yc.RawVector().Data, pen); err != nil {
			return nil, err
		}
	}
	m := &Model{Coef: coef, Intercept: ym}
	for j := range coef {
		m.Intercept -= coef[j] * means[j]
	}
	return m, nil
}

func solveQR(x *mat.Dense, y *mat.VecDense) ([]float64, error) {
	r, c := x.Dims()
	if r < c {
		return nil, ErrSingular
	}
	var qr mat.QR
	qr.Factorize(x)
	if qr.Cond() > 1e12 {
		return nil, ErrSingular
	}
	var b mat.VecDense
	if err := qr.SolveVecTo(&b, false, y); err != nil {
		return nil, err
	}
	return append([]float64(nil), b.RawVector().Data...), nil
}

// Ridge solves (X'X + diag(penalty)) b = X'y by Cholesky. No intercept.
func Ridge(x mat.Matrix, y []float64, penalty []float64) ([]float64, error) {
	r, c := x.Dims()
	if len(penalty) != c || len(y) != r {
		return nil, fmt.Errorf("linreg: ridge dims %dx%d, %d targets, %d penalties", r, c, len(y), len(penalty))
	}
	var a mat.SymDense
	a.SymOuterK(1, x.T())
	for j := 0; j < c; j++ {
		a.SetSym(j, j, a.At(j, j)+penalty[j])
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(r, append([]float64(nil), y...)))

	var ch mat.Cholesky
	if ok := ch.Factorize(&a); !ok {
		return nil, ErrSingular
	}
	var b mat.VecDense
	if err := ch.SolveVecTo(&b, &xty); err != nil {
		if _, cond := err.(mat.Condition); !cond {
			return nil, err
		}
	}
	return append([]float64(nil), b.RawVector().Data...), nil
}

func (m *Model) PredictRow(row []float64) float64 {
	v := m.Intercept
	for j, c := range m.Coef {
		v += c * row[j]
	}
	return v
}

func (m *Model) Predict(x mat.Matrix) []float64 {
	r, c := x.Dims()
	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			row[j] = x.At(i, j)
		}
		out[i] = m.PredictRow(row)
	}
	return out
}
