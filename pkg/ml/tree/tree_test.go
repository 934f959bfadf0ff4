package tree

import (
	"math"
	"testing"
)

func TestFitStepFunction(t *testing.T) {
	n := 40
	x := make([]float64, n)
	y := make([]float64, n)
	rows := make([]int, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i)
		if i >= 20 {
			y[i] = 10
		}
		rows[i] = i
	}
	tr := Fit([][]float64{x}, y, rows, Options{}, nil)
	if got := tr.PredictRow([]float64{5}); got != 0 {
		t.Fatalf("left side predicted %v", got)
	}
	if got := tr.PredictRow([]float64{30}); got != 10 {
		t.Fatalf("right side predicted %v", got)
	}
	if tr.Depth() != 1 {
		t.Fatalf("a step needs exactly one split, got depth %d", tr.Depth())
	}
}

func TestMaxDepthAndLambda(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{1, 2, 3, 4}
	rows := []int{0, 1, 2, 3}
	stump := Fit([][]float64{x}, y, rows, Options{MaxDepth: 1}, nil)
	if stump.Depth() != 1 {
		t.Fatalf("depth %d", stump.Depth())
	}
	root := Fit([][]float64{x}, y, rows, Options{MaxDepth: 0, MinSamplesSplit: 10, Lambda: 1}, nil)
	if got := root.PredictRow([]float64{2}); math.Abs(got-10.0/5.0) > 1e-12 {
		t.Fatalf("shrunk leaf %v", got)
	}
}
