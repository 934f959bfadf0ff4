package lstm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func tiny() Config {
	return Config{InputSize: 1, HiddenSize: 4, OutputSize: 1, NumLayers: 2, Dropout: 0}
}

func sineSamples(n, steps int) []Sample {
	series := make([]float64, n+steps)
	for i := range series {
		series[i] = 0.5 + 0.4*math.Sin(float64(i)/3)
	}
	out := make([]Sample, n)
	for i := range out {
		x := make([][]float64, steps)
		for s := range x {
			x[s] = []float64{series[i+s]}
		}
		out[i] = Sample{X: x, Y: []float64{series[i+steps]}}
	}
	return out
}

// numeric gradient of the training-mode loss for one weight, with batch
// stats and no dropout so the forward pass is deterministic.
func TestBackwardMatchesFiniteDifference(t *testing.T) {
	net, err := New(tiny(), 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	samples := sineSamples(6, 5)
	xs := make([][][]float64, len(samples))
	ys := make([][]float64, len(samples))
	for i, s := range samples {
		xs[i], ys[i] = s.X, s.Y
	}
	lossAt := func() float64 {
		saveMean := mat.DenseCopyOf(net.runMean)
		saveVar := mat.DenseCopyOf(net.runVar)
		out, _ := net.forward(toSteps(xs), true)
		net.runMean.Copy(saveMean)
		net.runVar.Copy(saveVar)
		l, _ := mse(out, ys)
		return l
	}
	net.zeroGrad()
	saveMean := mat.DenseCopyOf(net.runMean)
	saveVar := mat.DenseCopyOf(net.runVar)
	out, p := net.forward(toSteps(xs), true)
	net.runMean.Copy(saveMean)
	net.runVar.Copy(saveVar)
	_, dOut := mse(out, ys)
	net.backward(dOut, p)

	checks := []struct {
		name string
		w, g *mat.Dense
	}{
		{"layer0 wih", net.layers[0].wih, net.layers[0].gwih},
		{"layer1 whh", net.layers[1].whh, net.layers[1].gwhh},
		{"layer0 bias", net.layers[0].b, net.layers[0].gb},
		{"gamma", net.gamma, net.ggamma},
		{"fc", net.fcW, net.gfcW},
	}
	const eps = 1e-6
	for _, c := range checks {
		w := raw(c.w)
		for _, k := range []int{0, len(w) / 2, len(w) - 1} {
			orig := w[k]
			w[k] = orig + eps
			up := lossAt()
			w[k] = orig - eps
			down := lossAt()
			w[k] = orig
			num := (up - down) / (2 * eps)
			got := raw(c.g)[k]
			if math.Abs(num-got) > 1e-5+1e-3*math.Abs(num) {
				t.Fatalf("%s[%d]: analytic %v numeric %v", c.name, k, got, num)
			}
		}
	}
}

func TestFitLowersLoss(t *testing.T) {
	net, _ := New(tiny(), 7)
	samples := sineSamples(80, 8)
	before := net.Loss(samples)
	improved := 0
	res, err := net.Fit(samples[:64], samples[64:], TrainConfig{LearningRate: 0.01, BatchSize: 16, Epochs: 40, Patience: 40, ClipNorm: 1}, Hooks{
		OnImprove: func(int, float64) error { improved++; return nil },
	})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if res.BestValLoss >= before {
		t.Fatalf("validation loss did not improve: %v -> %v", before, res.BestValLoss)
	}
	if improved == 0 || res.BestEpoch < 1 {
		t.Fatalf("checkpoint hook never ran")
	}
}

func TestStateDictRoundTrip(t *testing.T) {
	a, _ := New(tiny(), 1)
	b, _ := New(tiny(), 2)
	state := map[string]*mat.Dense{}
	for _, p := range a.StateDict() {
		state[p.Name] = p.Data
	}
	if err := b.LoadStateDict(state); err != nil {
		t.Fatalf("load: %v", err)
	}
	xs := [][][]float64{sineSamples(1, 5)[0].X}
	if pa, pb := a.Predict(xs)[0][0], b.Predict(xs)[0][0]; pa != pb {
		t.Fatalf("predictions differ after load: %v vs %v", pa, pb)
	}
	other := tiny()
	other.HiddenSize = 8
	c, _ := New(other, 1)
	if err := c.LoadStateDict(state); err == nil {
		t.Fatalf("expected shape mismatch")
	}
	delete(state, "fc.bias")
	if err := b.LoadStateDict(state); err == nil {
		t.Fatalf("expected missing tensor error")
	}
}

func TestClip(t *testing.T) {
	g := mat.NewDense(1, 2, []float64{3, 4})
	if n := clip([]*mat.Dense{g}, 1); n != 5 {
		t.Fatalf("norm %v", n)
	}
	if got := floatsNorm(raw(g)); math.Abs(got-1) > 1e-5 {
		t.Fatalf("clipped norm %v", got)
	}
}

func floatsNorm(xs []float64) float64 {
	s := 0.0
	for _, v := range xs {
		s += v * v
	}
	return math.Sqrt(s)
}
