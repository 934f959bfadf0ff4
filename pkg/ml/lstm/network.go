// Package lstm is a small stacked LSTM regressor built on gonum matrices:
// LSTM layers, batch norm on the last hidden state, dropout and a linear
// head, trained with Adam on mean squared error.
package lstm

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

type Config struct {
	InputSize  int
	HiddenSize int
	OutputSize int
	NumLayers  int
	Dropout    float64
}

func (c Config) Validate() error {
	if c.InputSize < 1 || c.HiddenSize < 1 || c.OutputSize < 1 || c.NumLayers < 1 {
		return fmt.Errorf("lstm: sizes must be positive: %+v", c)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("lstm: dropout %g outside [0,1)", c.Dropout)
	}
	return nil
}

const (
	bnEps      = 1e-5
	bnMomentum = 0.1
)

type layer struct {
	wih, whh, b    *mat.Dense // 4H x in, 4H x H, 1 x 4H; gate order i, f, g, o
	gwih, gwhh, gb *mat.Dense
}

// Network holds parameters and their gradients. It is not safe for
// concurrent use.
type Network struct {
	cfg     Config
	layers  []*layer
	gamma   *mat.Dense // 1 x H
	beta    *mat.Dense
	runMean *mat.Dense
	runVar  *mat.Dense
	ggamma  *mat.Dense
	gbeta   *mat.Dense
	fcW     *mat.Dense // out x H
	fcB     *mat.Dense // 1 x out
	gfcW    *mat.Dense
	gfcB    *mat.Dense
	rng     *rand.Rand
}

// New initialises weights uniformly in +-1/sqrt(H).
func New(cfg Config, seed int64) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	h := cfg.HiddenSize
	bound := 1 / math.Sqrt(float64(h))
	uniform := func(r, c int) *mat.Dense {
		m := mat.NewDense(r, c, nil)
		raw := m.RawMatrix().Data
		for i := range raw {
			raw[i] = (2*rng.Float64() - 1) * bound
		}
		return m
	}
	n := &Network{cfg: cfg, rng: rng}
	in := cfg.InputSize
	for l := 0; l < cfg.NumLayers; l++ {
		n.layers = append(n.layers, &layer{
			wih:  uniform(4*h, in),
			whh:  uniform(4*h, h),
			b:    uniform(1, 4*h),
			gwih: mat.NewDense(4*h, in, nil),
			gwhh: mat.NewDense(4*h, h, nil),
			gb:   mat.NewDense(1, 4*h, nil),
		})
		in = h
	}
	n.gamma = filled(1, h, 1)
	n.beta = mat.NewDense(1, h, nil)
	n.runMean = mat.NewDense(1, h, nil)
	n.runVar = filled(1, h, 1)
	n.ggamma = mat.NewDense(1, h, nil)
	n.gbeta = mat.NewDense(1, h, nil)
	n.fcW = uniform(cfg.OutputSize, h)
	n.fcB = uniform(1, cfg.OutputSize)
	n.gfcW = mat.NewDense(cfg.OutputSize, h, nil)
	n.gfcB = mat.NewDense(1, cfg.OutputSize, nil)
	return n, nil
}

func (n *Network) Config() Config { return n.cfg }

func filled(r, c int, v float64) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	raw := m.RawMatrix().Data
	for i := range raw {
		raw[i] = v
	}
	return m
}

func raw(m *mat.Dense) []float64 { return m.RawMatrix().Data }

func (n *Network) params() (ps, gs []*mat.Dense) {
	for _, l := range n.layers {
		ps = append(ps, l.wih, l.whh, l.b)
		gs = append(gs, l.gwih, l.gwhh, l.gb)
	}
	ps = append(ps, n.gamma, n.beta, n.fcW, n.fcB)
	gs = append(gs, n.ggamma, n.gbeta, n.gfcW, n.gfcB)
	return ps, gs
}

func (n *Network) zeroGrad() {
	_, gs := n.params()
	for _, g := range gs {
		g.Zero()
	}
}

// Param is one named tensor of the state dict.
type Param struct {
	Name string
	Data *mat.Dense
}

// StateDict lists parameters and batch-norm buffers by name (lstm.weight_ih_l0, fc.bias, ...).
func (n *Network) StateDict() []Param {
	var out []Param
	for i, l := range n.layers {
		out = append(out,
			Param{fmt.Sprintf("lstm.weight_ih_l%d", i), mat.DenseCopyOf(l.wih)},
			Param{fmt.Sprintf("lstm.weight_hh_l%d", i), mat.DenseCopyOf(l.whh)},
			Param{fmt.Sprintf("lstm.bias_l%d", i), mat.DenseCopyOf(l.b)},
		)
	}
	return append(out,
		Param{"batch_norm.weight", mat.DenseCopyOf(n.gamma)},
		Param{"batch_norm.bias", mat.DenseCopyOf(n.beta)},
		Param{"batch_norm.running_mean", mat.DenseCopyOf(n.runMean)},
		Param{"batch_norm.running_var", mat.DenseCopyOf(n.runVar)},
		Param{"fc.weight", mat.DenseCopyOf(n.fcW)},
		Param{"fc.bias", mat.DenseCopyOf(n.fcB)},
	)
}

// LoadStateDict copies tensors into the network. Every tensor must be
// present with the shape this architecture expects.
func (n *Network) LoadStateDict(state map[string]*mat.Dense) error {
	for _, p := range n.StateDict() {
		src, ok := state[p.Name]
		if !ok {
			return fmt.Errorf("lstm: state dict missing %s", p.Name)
		}
		r, c := p.Data.Dims()
		if sr, sc := src.Dims(); sr != r || sc != c {
			return fmt.Errorf("lstm: %s has shape %dx%d, architecture expects %dx%d", p.Name, sr, sc, r, c)
		}
	}
	dst := map[string]*mat.Dense{
		"batch_norm.weight":       n.gamma,
		"batch_norm.bias":         n.beta,
		"batch_norm.running_mean": n.runMean,
		"batch_norm.running_var":  n.runVar,
		"fc.weight":               n.fcW,
		"fc.bias":                 n.fcB,
	}
	for i, l := range n.layers {
		dst[fmt.Sprintf("lstm.weight_ih_l%d", i)] = l.wih
		dst[fmt.Sprintf("lstm.weight_hh_l%d", i)] = l.whh
		dst[fmt.Sprintf("lstm.bias_l%d", i)] = l.b
	}
	for name, m := range dst {
		m.Copy(state[name])
	}
	return nil
}
