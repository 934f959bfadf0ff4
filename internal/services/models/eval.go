package models

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"MDK/internal/domain/models"
)

// score compares predictions with held-out targets.
func score(yTrue, yPred []float64) models.Evaluation {
	ev := models.Evaluation{ValRows: len(yTrue)}
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return ev
	}
	var se, ae float64
	for i, y := range yTrue {
		e := yPred[i] - y
		se += e * e
		ae += math.Abs(e)
	}
	n := float64(len(yTrue))
	ev.MSE, ev.MAE = se/n, ae/n
	ev.R2 = stat.RSquaredFrom(yPred, yTrue, nil)
	return ev
}
