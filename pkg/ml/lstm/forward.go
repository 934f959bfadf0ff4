package lstm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type stepCache struct {
	x, hPrev, cPrev *mat.Dense
	i, f, g, o      *mat.Dense
	tc              *mat.Dense // tanh(c_t)
}

type pass struct {
	train      bool
	steps      [][]stepCache // per layer
	masks      []*mat.Dense  // inter-layer dropout, per layer output except the last
	hLast      *mat.Dense
	xhat       *mat.Dense
	invStd     []float64
	batchStats bool
	headMask   *mat.Dense
	hd         *mat.Dense
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

// toSteps turns B sequences of T x in into T matrices of B x in.
func toSteps(batch [][][]float64) []*mat.Dense {
	b, t := len(batch), len(batch[0])
	in := len(batch[0][0])
	out := make([]*mat.Dense, t)
	for s := 0; s < t; s++ {
		m := mat.NewDense(b, in, nil)
		for k := 0; k < b; k++ {
			m.SetRow(k, batch[k][s])
		}
		out[s] = m
	}
	return out
}

func (n *Network) dropoutMask(r, c int) *mat.Dense {
	p := n.cfg.Dropout
	m := mat.NewDense(r, c, nil)
	data := raw(m)
	for i := range data {
		if n.rng.Float64() >= p {
			data[i] = 1 / (1 - p)
		}
	}
	return m
}

func (l *layer) forward(xs []*mat.Dense, h int) ([]*mat.Dense, []stepCache) {
	b, _ := xs[0].Dims()
	hPrev := mat.NewDense(b, h, nil)
	cPrev := mat.NewDense(b, h, nil)
	outs := make([]*mat.Dense, len(xs))
	cache := make([]stepCache, len(xs))
	bias := raw(l.b)
	for t, x := range xs {
		var a, ah mat.Dense
		a.Mul(x, l.wih.T())
		ah.Mul(hPrev, l.whh.T())
		a.Add(&a, &ah)
		ad := raw(&a)
		ig, fg, gg, og := mat.NewDense(b, h, nil), mat.NewDense(b, h, nil), mat.NewDense(b, h, nil), mat.NewDense(b, h, nil)
		c, tc, hn := mat.NewDense(b, h, nil), mat.NewDense(b, h, nil), mat.NewDense(b, h, nil)
		id, fd, gd, od := raw(ig), raw(fg), raw(gg), raw(og)
		cd, tcd, hd, cp := raw(c), raw(tc), raw(hn), raw(cPrev)
		for r := 0; r < b; r++ {
			row := ad[r*4*h : (r+1)*4*h]
			for j := 0; j < h; j++ {
				k := r*h + j
				id[k] = sigmoid(row[j] + bias[j])
				fd[k] = sigmoid(row[h+j] + bias[h+j])
				gd[k] = math.Tanh(row[2*h+j] + bias[2*h+j])
				od[k] = sigmoid(row[3*h+j] + bias[3*h+j])
				cd[k] = fd[k]*cp[k] + id[k]*gd[k]
				tcd[k] = math.Tanh(cd[k])
				hd[k] = od[k] * tcd[k]
			}
		}
		cache[t] = stepCache{x: x, hPrev: hPrev, cPrev: cPrev, i: ig, f: fg, g: gg, o: og, tc: tc}
		outs[t] = hn
		hPrev, cPrev = hn, c
	}
	return outs, cache
}

// forward runs the network on T step matrices. train enables dropout and
// batch statistics.
func (n *Network) forward(xs []*mat.Dense, train bool) (*mat.Dense, *pass) {
	h := n.cfg.HiddenSize
	p := &pass{train: train}
	seq := xs
	for li, l := range n.layers {
		outs, cache := l.forward(seq, h)
		p.steps = append(p.steps, cache)
		if train && n.cfg.Dropout > 0 && li < len(n.layers)-1 {
			b, _ := outs[0].Dims()
			mask := n.dropoutMask(b, h*len(outs))
			md := raw(mask)
			for t, o := range outs {
				masked := mat.DenseCopyOf(o)
				od := raw(masked)
				for k := range od {
					r, j := k/h, k%h
					od[k] *= md[r*h*len(outs)+t*h+j]
				}
				outs[t] = masked
			}
			p.masks = append(p.masks, mask)
		} else {
			p.masks = append(p.masks, nil)
		}
		seq = outs
	}
	last := seq[len(seq)-1]
	p.hLast = last
	b, _ := last.Dims()

	// batch norm over the batch dimension
	xhat := mat.NewDense(b, h, nil)
	bn := mat.NewDense(b, h, nil)
	p.invStd = make([]float64, h)
	p.batchStats = train && b > 1
	ld, xd, bd := raw(last), raw(xhat), raw(bn)
	gam, bet, rm, rv := raw(n.gamma), raw(n.beta), raw(n.runMean), raw(n.runVar)
	for j := 0; j < h; j++ {
		mean, variance := rm[j], rv[j]
		if p.batchStats {
			mean = 0
			for r := 0; r < b; r++ {
				mean += ld[r*h+j]
			}
			mean /= float64(b)
			variance = 0
			for r := 0; r < b; r++ {
				d := ld[r*h+j] - mean
				variance += d * d
			}
			variance /= float64(b)
			rm[j] = (1-bnMomentum)*rm[j] + bnMomentum*mean
			rv[j] = (1-bnMomentum)*rv[j] + bnMomentum*variance*float64(b)/float64(b-1)
		}
		inv := 1 / math.Sqrt(variance+bnEps)
		p.invStd[j] = inv
		for r := 0; r < b; r++ {
			k := r*h + j
			xd[k] = (ld[k] - mean) * inv
			bd[k] = gam[j]*xd[k] + bet[j]
		}
	}
	p.xhat = xhat
	if train && n.cfg.Dropout > 0 {
		p.headMask = n.dropoutMask(b, h)
		bn.MulElem(bn, p.headMask)
	}
	p.hd = bn

	var out mat.Dense
	out.Mul(bn, n.fcW.T())
	od, fb := raw(&out), raw(n.fcB)
	for r := 0; r < b; r++ {
		for j := range fb {
			od[r*len(fb)+j] += fb[j]
		}
	}
	return &out, p
}

// backward accumulates gradients for dOut = dLoss/dOutput (B x out).
func (n *Network) backward(dOut *mat.Dense, p *pass) {
	h := n.cfg.HiddenSize
	b, _ := dOut.Dims()

	var gw mat.Dense
	gw.Mul(dOut.T(), p.hd)
	n.gfcW.Add(n.gfcW, &gw)
	gb, dd := raw(n.gfcB), raw(dOut)
	for r := 0; r < b; r++ {
		for j := range gb {
			gb[j] += dd[r*len(gb)+j]
		}
	}
	var dbn mat.Dense
	dbn.Mul(dOut, n.fcW)
	if p.headMask != nil {
		dbn.MulElem(&dbn, p.headMask)
	}

	dxh := mat.NewDense(b, h, nil)
	dbd, xd, dxd := raw(&dbn), raw(p.xhat), raw(dxh)
	gam, gg, gbeta := raw(n.gamma), raw(n.ggamma), raw(n.gbeta)
	for j := 0; j < h; j++ {
		sumD, sumDX := 0.0, 0.0
		for r := 0; r < b; r++ {
			k := r*h + j
			gg[j] += dbd[k] * xd[k]
			gbeta[j] += dbd[k]
			d := dbd[k] * gam[j]
			sumD += d
			sumDX += d * xd[k]
		}
		for r := 0; r < b; r++ {
			k := r*h + j
			d := dbd[k] * gam[j]
			if p.batchStats {
				dxd[k] = p.invStd[j] / float64(b) * (float64(b)*d - sumD - xd[k]*sumDX)
			} else {
				dxd[k] = d * p.invStd[j]
			}
		}
	}

	nt := len(p.steps[0])
	dHs := make([]*mat.Dense, nt)
	dHs[nt-1] = dxh
	for li := len(n.layers) - 1; li >= 0; li-- {
		if mask := p.masks[li]; mask != nil {
			md := raw(mask)
			for t, d := range dHs {
				if d == nil {
					continue
				}
				dv := raw(d)
				for k := range dv {
					r, j := k/h, k%h
					dv[k] *= md[r*h*nt+t*h+j]
				}
			}
		}
		dHs = n.layers[li].backward(p.steps[li], dHs, h)
	}
}

// backward runs BPTT through one layer and returns gradients w.r.t. its
// inputs at every step.
func (l *layer) backward(cache []stepCache, dHs []*mat.Dense, h int) []*mat.Dense {
	b, _ := cache[0].hPrev.Dims()
	dhNext := mat.NewDense(b, h, nil)
	dcNext := mat.NewDense(b, h, nil)
	dxs := make([]*mat.Dense, len(cache))
	gb := raw(l.gb)
	for t := len(cache) - 1; t >= 0; t-- {
		sc := cache[t]
		dh := raw(dhNext)
		if dHs[t] != nil {
			ext := raw(dHs[t])
			for k := range dh {
				dh[k] += ext[k]
			}
		}
		dA := mat.NewDense(b, 4*h, nil)
		da := raw(dA)
		dc := raw(dcNext)
		id, fd, gd, od, tcd, cp := raw(sc.i), raw(sc.f), raw(sc.g), raw(sc.o), raw(sc.tc), raw(sc.cPrev)
		for r := 0; r < b; r++ {
			row := da[r*4*h : (r+1)*4*h]
			for j := 0; j < h; j++ {
				k := r*h + j
				dO := dh[k] * tcd[k]
				dC := dh[k]*od[k]*(1-tcd[k]*tcd[k]) + dc[k]
				row[j] = dC * gd[k] * id[k] * (1 - id[k])
				row[h+j] = dC * cp[k] * fd[k] * (1 - fd[k])
				row[2*h+j] = dC * id[k] * (1 - gd[k]*gd[k])
				row[3*h+j] = dO * od[k] * (1 - od[k])
				dc[k] = dC * fd[k]
			}
			for j := range gb {
				gb[j] += row[j]
			}
		}
		var tmp mat.Dense
		tmp.Mul(dA.T(), sc.x)
		l.gwih.Add(l.gwih, &tmp)
		tmp.Reset()
		tmp.Mul(dA.T(), sc.hPrev)
		l.gwhh.Add(l.gwhh, &tmp)

		var dx mat.Dense
		dx.Mul(dA, l.wih)
		dxs[t] = &dx
		next := mat.NewDense(b, h, nil)
		next.Mul(dA, l.whh)
		dhNext = next
	}
	return dxs
}
