package features

import (
	"sort"
	"time"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/pkg/util"
)

// Resample buckets rows by interval and averages every column. Buckets with
// no rows are not emitted.
func Resample(ds *models.Dataset, iv util.Interval) (*models.Dataset, error) {
	if !ds.HasDates() {
		return nil, domain.Validation("resample", "dataset has no %s column", models.ColDate)
	}
	type bucket struct {
		at            time.Time
		n             float64
		o, h, l, c, v float64
	}
	byKey := map[int64]*bucket{}
	for i := 0; i < ds.Len(); i++ {
		at := iv.Floor(ds.Dates[i])
		b, ok := byKey[at.UnixNano()]
		if !ok {
			b = &bucket{at: at}
			byKey[at.UnixNano()] = b
		}
		b.n++
		b.o += ds.Open[i]
		b.h += ds.High[i]
		b.l += ds.Low[i]
		b.c += ds.Close[i]
		b.v += ds.Volume[i]
	}
	buckets := make([]*bucket, 0, len(byKey))
	for _, b := range byKey {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].at.Before(buckets[j].at) })

	candles := make([]models.Candle, len(buckets))
	for i, b := range buckets {
		candles[i] = models.Candle{Date: b.at, Open: b.o / b.n, High: b.h / b.n, Low: b.l / b.n, Close: b.c / b.n, Volume: b.v / b.n}
	}
	return models.NewDataset(candles, true), nil
}

// Difference applies first differences d times.
func Difference(xs []float64, d int) []float64 {
	out := append([]float64(nil), xs...)
	for k := 0; k < d && len(out) > 0; k++ {
		for i := 0; i < len(out)-1; i++ {
			out[i] = out[i+1] - out[i]
		}
		out = out[:len(out)-1]
	}
	return out
}

// Integrate inverts Difference for a forecast continuing history.
// history must hold at least d trailing level values.
func Integrate(diffs []float64, history []float64, d int) []float64 {
	if d == 0 {
		return append([]float64(nil), diffs...)
	}
	// last value of every differencing order, order 0 first
	lasts := make([]float64, d)
	level := append([]float64(nil), history...)
	for k := 0; k < d; k++ {
		lasts[k] = level[len(level)-1]
		level = Difference(level, 1)
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

// Windows turns a series into overlapping inputs of length steps, each
// paired with the value that follows it.
func Windows(series []float64, steps int) ([][]float64, []float64) {
	if steps < 1 || len(series) <= steps {
		return nil, nil
	}
	n := len(series) - steps
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = series[i : i+steps]
		y[i] = series[i+steps]
	}
	return x, y
}
