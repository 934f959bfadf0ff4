package features

import (
	"gonum.org/v1/gonum/mat"

	"MDK/internal/domain"
)

// MinMaxScaler maps every column linearly onto [FeatureMin, FeatureMax]
// using the bounds seen during Fit. Constant columns get a unit scale.
type MinMaxScaler struct {
	FeatureMin float64
	FeatureMax float64
	DataMin    []float64
	DataMax    []float64
	Scale      []float64
	Offset     []float64
}

func NewMinMaxScaler(lo, hi float64) *MinMaxScaler {
	return &MinMaxScaler{FeatureMin: lo, FeatureMax: hi}
}

func (s *MinMaxScaler) Fitted() bool { return len(s.Scale) > 0 }

func (s *MinMaxScaler) Fit(x mat.Matrix) error {
	r, c := x.Dims()
	if r == 0 {
		return domain.InsufficientData("scaler fit", 1, 0)
	}
	if s.FeatureMin >= s.FeatureMax {
		return domain.Validation("scaler fit", "feature range [%g, %g] is empty", s.FeatureMin, s.FeatureMax)
	}
	s.DataMin = make([]float64, c)
	s.DataMax = make([]float64, c)
	s.Scale = make([]float64, c)
	s.Offset = make([]float64, c)
	for j := 0; j < c; j++ {
		lo, hi := x.At(0, j), x.At(0, j)
		for i := 1; i < r; i++ {
			v := x.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		rng := hi - lo
		if rng == 0 {
			rng = 1
		}
		s.DataMin[j], s.DataMax[j] = lo, hi
		s.Scale[j] = (s.FeatureMax - s.FeatureMin) / rng
		s.Offset[j] = s.FeatureMin - lo*s.Scale[j]
	}
	return nil
}

func (s *MinMaxScaler) check(c int) error {
	if !s.Fitted() {
		return domain.NotTrained("scaler")
	}
	if c != len(s.Scale) {
		return domain.Validation("scaler", "fitted on %d columns, got %d", len(s.Scale), c)
	}
	return nil
}

func (s *MinMaxScaler) Transform(x mat.Matrix) (*mat.Dense, error) {
	r, c := x.Dims()
	if err := s.check(c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 { return v*s.Scale[j] + s.Offset[j] }, x)
	return out, nil
}

func (s *MinMaxScaler) FitTransform(x mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}

func (s *MinMaxScaler) InverseTransform(x mat.Matrix) (*mat.Dense, error) {
	r, c := x.Dims()
	if err := s.check(c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 { return (v - s.Offset[j]) / s.Scale[j] }, x)
	return out, nil
}

// Scale1 and Unscale1 act on a single-column scaler.
func (s *MinMaxScaler) Scale1(v float64) float64 { return v*s.Scale[0] + s.Offset[0] }

func (s *MinMaxScaler) Unscale1(v float64) float64 { return (v - s.Offset[0]) / s.Scale[0] }
