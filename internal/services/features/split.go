package features

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"MDK/internal/domain"
)

// Split is the result of SplitAndScale. Row indices refer to the rows of
// the matrix passed in.
type Split struct {
	XTrain, XVal *mat.Dense
	YTrain, YVal []float64
	TrainRows    []int
	ValRows      []int
	Scaler       *MinMaxScaler
}

// SplitAndScale shuffles rows with seed, holds out ceil(n*testSize) of them,
// fits scaler on the training part only and transforms both parts. A nil
// scaler means a fresh [0,1] scaler.
func SplitAndScale(x *mat.Dense, y []float64, scaler *MinMaxScaler, testSize float64, seed int64) (*Split, error) {
	const op = "split and scale"
	n, _ := x.Dims()
	if n != len(y) {
		return nil, domain.Validation(op, "%d feature rows but %d targets", n, len(y))
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, domain.Validation(op, "test size must be in (0,1), got %g", testSize)
	}
	nVal := int(math.Ceil(float64(n) * testSize))
	if n < 2 || nVal >= n {
		return nil, domain.InsufficientData(op, 2, n)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	sp := &Split{ValRows: perm[:nVal], TrainRows: perm[nVal:]}
	if scaler == nil {
		scaler = NewMinMaxScaler(0, 1)
	}
	sp.Scaler = scaler

	xt, yt := gather(x, y, sp.TrainRows)
	xv, yv := gather(x, y, sp.ValRows)
	var err error
	if sp.XTrain, err = scaler.FitTransform(xt); err != nil {
		return nil, err
	}
	if sp.XVal, err = scaler.Transform(xv); err != nil {
		return nil, err
	}
	sp.YTrain, sp.YVal = yt, yv
	return sp, nil
}

func gather(x *mat.Dense, y []float64, rows []int) (*mat.Dense, []float64) {
	_, c := x.Dims()
	out := mat.NewDense(len(rows), c, nil)
	ys := make([]float64, len(rows))
	for i, r := range rows {
		out.SetRow(i, x.RawRowView(r))
		ys[i] = y[r]
	}
	return out, ys
}
