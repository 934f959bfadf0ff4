package features

import (
	"errors"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/pkg/util"
)

func series(n int) *models.Dataset {
	candles := make([]models.Candle, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		c := 100 + float64(i)
		candles[i] = models.Candle{Date: start.AddDate(0, 0, i), Open: c - 1, High: c + 1, Low: c - 2, Close: c, Volume: 1000 + float64(i)}
	}
	return models.NewDataset(candles, true)
}

func TestCreateLagFeatures(t *testing.T) {
	ds := series(20)
	tab, err := CreateLagFeatures(ds, models.ColClose, 3)
	if err != nil {
		t.Fatalf("lag features: %v", err)
	}
	if tab.Rows() != 17 {
		t.Fatalf("expected 17 rows, got %d", tab.Rows())
	}
	closes, _ := tab.Col(models.ColClose)
	lag1, _ := tab.Col(LagName(1))
	lag3, _ := tab.Col(LagName(3))
	for i := range closes {
		if lag1[i] != ds.Close[tab.Index[i]-1] {
			t.Fatalf("row %d: lag_1 %v != previous close", i, lag1[i])
		}
		if lag3[i] != ds.Close[tab.Index[i]-3] {
			t.Fatalf("row %d: lag_3 mismatch", i)
		}
	}
	if tab.Index[0] != 3 || !tab.Dates[0].Equal(ds.Dates[3]) {
		t.Fatalf("alignment lost: index %d date %v", tab.Index[0], tab.Dates[0])
	}
}

func TestCreateLagFeaturesInsufficient(t *testing.T) {
	_, err := CreateLagFeatures(series(5), models.ColClose, 5)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
	tab, err := CreateLagFeatures(series(6), models.ColClose, 5)
	if err != nil || tab.Rows() != 1 {
		t.Fatalf("expected one row, got %v %v", tab, err)
	}
}

func TestSplitAndScaleDeterministic(t *testing.T) {
	n := 50
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i))
		x.Set(i, 1, float64(i*i))
		y[i] = float64(i)
	}
	a, err := SplitAndScale(x, y, nil, 0.2, 42)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	b, _ := SplitAndScale(x, y, nil, 0.2, 42)
	if len(a.ValRows) != 10 || len(a.TrainRows) != 40 {
		t.Fatalf("unexpected partition sizes %d/%d", len(a.TrainRows), len(a.ValRows))
	}
	for i := range a.ValRows {
		if a.ValRows[i] != b.ValRows[i] {
			t.Fatalf("split not deterministic")
		}
	}
	for j := range a.Scaler.Scale {
		if a.Scaler.Scale[j] != b.Scaler.Scale[j] || a.Scaler.Offset[j] != b.Scaler.Offset[j] {
			t.Fatalf("scaler not deterministic")
		}
	}
	r, c := a.XTrain.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := a.XTrain.At(i, j); v < -1e-12 || v > 1+1e-12 {
				t.Fatalf("train value %v outside [0,1]", v)
			}
		}
	}
}

func TestMinMaxScalerInverse(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 5, 2, 5, 3, 5})
	s := NewMinMaxScaler(-1, 1)
	scaled, err := s.FitTransform(x)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if scaled.At(0, 0) != -1 || scaled.At(2, 0) != 1 {
		t.Fatalf("unexpected scaled column %v", mat.Formatted(scaled))
	}
	back, _ := s.InverseTransform(scaled)
	if !mat.EqualApprox(back, x, 1e-12) {
		t.Fatalf("inverse mismatch")
	}
	if _, err := NewMinMaxScaler(0, 1).Transform(x); !errors.Is(err, domain.ErrNotTrained) {
		t.Fatalf("expected not trained, got %v", err)
	}
}

func TestDifferenceIntegrate(t *testing.T) {
	xs := []float64{1, 4, 9, 16, 25}
	d2 := Difference(xs, 2)
	if len(d2) != 3 || d2[0] != 2 || d2[2] != 2 {
		t.Fatalf("unexpected second difference %v", d2)
	}
	next := Integrate([]float64{2, 2}, xs, 2)
	if next[0] != 36 || next[1] != 49 {
		t.Fatalf("unexpected integration %v", next)
	}
}

func TestResample(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []models.Candle{
		{Date: start, Close: 1},
		{Date: start.Add(6 * time.Hour), Close: 3},
		{Date: start.AddDate(0, 0, 2), Close: 5},
	}
	out, err := Resample(models.NewDataset(candles, true), util.MustInterval("D"))
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if out.Len() != 2 || out.Close[0] != 2 || out.Close[1] != 5 {
		t.Fatalf("unexpected resample %v", out.Close)
	}
	if _, err := Resample(models.NewDataset(candles, false), util.MustInterval("D")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error without dates")
	}
}

func TestWindows(t *testing.T) {
	x, y := Windows([]float64{1, 2, 3, 4, 5}, 3)
	if len(x) != 2 || y[0] != 4 || y[1] != 5 || x[1][0] != 2 {
		t.Fatalf("unexpected windows %v %v", x, y)
	}
	if x, _ := Windows([]float64{1, 2, 3}, 3); x != nil {
		t.Fatalf("expected no windows")
	}
}

func TestSetSeed(t *testing.T) {
	SetSeed(7)
	a := GlobalInt63()
	SetSeed(7)
	if b := GlobalInt63(); a != b {
		t.Fatalf("global seed not reproducible")
	}
}
