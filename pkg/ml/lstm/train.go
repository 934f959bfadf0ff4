package lstm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrNoSamples = errors.New("lstm: no training samples")

// Sample is one input sequence (steps x input size) and its target.
type Sample struct {
	X [][]float64
	Y []float64
}

type TrainConfig struct {
	LearningRate float64
	BatchSize    int
	Epochs       int
	Patience     int
	ClipNorm     float64
}

// Hooks let the caller checkpoint and log. OnImprove runs after every epoch
// that lowers the validation loss; an error aborts training.
type Hooks struct {
	OnImprove func(epoch int, valLoss float64) error
	OnEpoch   func(epoch int, trainLoss, valLoss float64)
}

type Result struct {
	BestValLoss float64
	BestEpoch   int
	Epochs      int
	EarlyStop   bool
}

type adam struct {
	lr, b1, b2, eps float64
	t               int
	m, v            [][]float64
}

func newAdam(lr float64, ps []*mat.Dense) *adam {
	a := &adam{lr: lr, b1: 0.9, b2: 0.999, eps: 1e-8}
	for _, p := range ps {
		a.m = append(a.m, make([]float64, len(raw(p))))
		a.v = append(a.v, make([]float64, len(raw(p))))
	}
	return a
}

func (a *adam) step(ps, gs []*mat.Dense) {
	a.t++
	c1 := 1 - math.Pow(a.b1, float64(a.t))
	c2 := 1 - math.Pow(a.b2, float64(a.t))
	for i, p := range ps {
		pd, gd, m, v := raw(p), raw(gs[i]), a.m[i], a.v[i]
		for k, g := range gd {
			m[k] = a.b1*m[k] + (1-a.b1)*g
			v[k] = a.b2*v[k] + (1-a.b2)*g*g
			pd[k] -= a.lr * (m[k] / c1) / (math.Sqrt(v[k]/c2) + a.eps)
		}
	}
}

// clip rescales all gradients so their joint L2 norm is at most maxNorm.
func clip(gs []*mat.Dense, maxNorm float64) float64 {
	total := 0.0
	for _, g := range gs {
		n := floats.Norm(raw(g), 2)
		total += n * n
	}
	total = math.Sqrt(total)
	if maxNorm > 0 && total > maxNorm {
		scale := maxNorm / (total + 1e-6)
		for _, g := range gs {
			floats.Scale(scale, raw(g))
		}
	}
	return total
}

// Fit trains with shuffled mini-batches and stops once the validation loss
// has not improved for Patience epochs. With no validation samples the
// training set is used for validation.
func (n *Network) Fit(train, val []Sample, tc TrainConfig, hooks Hooks) (Result, error) {
	if len(train) == 0 {
		return Result{}, ErrNoSamples
	}
	if tc.BatchSize < 1 || tc.Epochs < 1 || tc.LearningRate <= 0 {
		return Result{}, fmt.Errorf("lstm: invalid training config %+v", tc)
	}
	if len(val) == 0 {
		val = train
	}
	ps, gs := n.params()
	opt := newAdam(tc.LearningRate, ps)
	res := Result{BestValLoss: math.Inf(1), BestEpoch: -1}
	since := 0
	for epoch := 0; epoch < tc.Epochs; epoch++ {
		perm := n.rng.Perm(len(train))
		epochLoss, batches := 0.0, 0
		for start := 0; start < len(perm); start += tc.BatchSize {
			end := min(start+tc.BatchSize, len(perm))
			xs := make([][][]float64, 0, end-start)
			ys := make([][]float64, 0, end-start)
			for _, i := range perm[start:end] {
				xs = append(xs, train[i].X)
				ys = append(ys, train[i].Y)
			}
			n.zeroGrad()
			out, p := n.forward(toSteps(xs), true)
			loss, dOut := mse(out, ys)
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return res, fmt.Errorf("lstm: loss diverged at epoch %d", epoch+1)
			}
			n.backward(dOut, p)
			clip(gs, tc.ClipNorm)
			opt.step(ps, gs)
			epochLoss += loss
			batches++
		}
		valLoss := n.Loss(val)
		res.Epochs = epoch + 1
		if hooks.OnEpoch != nil {
			hooks.OnEpoch(epoch+1, epochLoss/float64(batches), valLoss)
		}
		if valLoss < res.BestValLoss {
			res.BestValLoss, res.BestEpoch, since = valLoss, epoch+1, 0
			if hooks.OnImprove != nil {
				if err := hooks.OnImprove(epoch+1, valLoss); err != nil {
					return res, err
				}
			}
			continue
		}
		since++
		if tc.Patience > 0 && since >= tc.Patience {
			res.EarlyStop = true
			break
		}
	}
	return res, nil
}

func mse(out *mat.Dense, ys [][]float64) (float64, *mat.Dense) {
	r, c := out.Dims()
	d := mat.NewDense(r, c, nil)
	od, dd := raw(out), raw(d)
	loss := 0.0
	scale := float64(r * c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			e := od[i*c+j] - ys[i][j]
			loss += e * e
			dd[i*c+j] = 2 * e / scale
		}
	}
	return loss / scale, d
}

// Loss is the evaluation-mode mean squared error on samples.
func (n *Network) Loss(samples []Sample) float64 {
	xs := make([][][]float64, len(samples))
	ys := make([][]float64, len(samples))
	for i, s := range samples {
		xs[i], ys[i] = s.X, s.Y
	}
	out := n.Predict(xs)
	total, count := 0.0, 0
	for i, row := range out {
		for j, v := range row {
			e := v - ys[i][j]
			total += e * e
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return total / float64(count)
}

const predictChunk = 256

// Predict runs the network in evaluation mode: running batch-norm
// statistics and no dropout.
func (n *Network) Predict(xs [][][]float64) [][]float64 {
	out := make([][]float64, 0, len(xs))
	for start := 0; start < len(xs); start += predictChunk {
		end := min(start+predictChunk, len(xs))
		res, _ := n.forward(toSteps(xs[start:end]), false)
		r, _ := res.Dims()
		for i := 0; i < r; i++ {
			out = append(out, append([]float64(nil), res.RawRowView(i)...))
		}
	}
	return out
}
