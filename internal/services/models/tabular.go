package models

import (
	"gonum.org/v1/gonum/mat"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
	"MDK/internal/services/artifacts"
	"MDK/internal/services/features"
	"MDK/pkg/logger"
)

// baseFeatures are the raw predictors; close is the target.
var baseFeatures = []string{models.ColOpen, models.ColHigh, models.ColLow, models.ColVolume}

type estimator interface {
	Predict(x mat.Matrix) []float64
}

// tabular is a per-row regressor over OHLV features, optionally extended
// with lagged closes. E is the concrete estimator persisted to model.pkl.
type tabular[E estimator] struct {
	base
	cfg    TabularConfig
	nLags  int // 0 for the raw-feature variants
	fit    func(sp *features.Split) (E, error)
	est    E
	scaler *features.MinMaxScaler
}

func newTabular[E estimator](name string, env Env, cfg TabularConfig, lagged bool, fit func(*features.Split) (E, error)) *tabular[E] {
	t := &tabular[E]{
		base: newBase(name, service.NativeObject, true, env),
		cfg:  cfg,
		fit:  fit,
	}
	if lagged {
		t.nLags = cfg.NLags
	}
	return t
}

func (t *tabular[E]) columns() []string {
	cols := append([]string(nil), baseFeatures...)
	for k := 1; k <= t.nLags; k++ {
		cols = append(cols, features.LagName(k))
	}
	return cols
}

func (t *tabular[E]) table(ds *models.Dataset) (*features.Table, error) {
	if t.nLags == 0 {
		return features.FromDataset(ds), nil
	}
	return features.CreateLagFeatures(ds, models.ColClose, t.nLags)
}

func (t *tabular[E]) matrix(ds *models.Dataset) (*features.Table, *mat.Dense, error) {
	tbl, err := t.table(ds)
	if err != nil {
		return nil, nil, err
	}
	x, err := tbl.Select(t.columns()...)
	if err != nil {
		return nil, nil, err
	}
	return tbl, x, nil
}

func (t *tabular[E]) Train(ds *models.Dataset) error {
	tbl, x, err := t.matrix(ds)
	if err != nil {
		return err
	}
	y, err := tbl.Col(models.ColClose)
	if err != nil {
		return err
	}
	r := t.cfg.ScalerFeatureRange
	sp, err := features.SplitAndScale(x, y, features.NewMinMaxScaler(r[0], r[1]), t.cfg.TestSize, t.cfg.RandomState)
	if err != nil {
		return err
	}
	est, err := t.fit(sp)
	if err != nil {
		return domain.TrainingFailure(t.op("train"), err)
	}
	t.est, t.scaler, t.ready = est, sp.Scaler, true
	t.eval = score(sp.YVal, est.Predict(sp.XVal))
	t.eval.TrainRows = len(sp.YTrain)
	t.log.Info("model trained",
		logger.Int("train_rows", t.eval.TrainRows),
		logger.Int("val_rows", t.eval.ValRows),
		logger.Float64("val_r2", t.eval.R2))
	return t.Save()
}

// Inference predicts every input row. Lagged variants leave the first
// n_lags rows missing.
func (t *tabular[E]) Inference(ds *models.Dataset) (*models.Predictions, error) {
	if err := t.requireReady("inference"); err != nil {
		return nil, err
	}
	_, x, err := t.matrix(ds)
	if err != nil {
		return nil, err
	}
	xs, err := t.scaler.Transform(x)
	if err != nil {
		return nil, domain.Validation(t.op("inference"), "%v", err)
	}
	out := models.NewPredictions(ds.RowIndex(), ds.Dates)
	for i, v := range t.est.Predict(xs) {
		out.Values[i+t.nLags] = v
	}
	return out, nil
}

// Forecast is not a capability of per-row regressors.
func (t *tabular[E]) Forecast(steps int, _ *models.Dataset) (*models.Forecast, error) {
	if err := t.requireReady("forecast"); err != nil {
		return nil, err
	}
	if err := t.checkSteps(steps); err != nil {
		return nil, err
	}
	return models.UnsupportedForecast(steps), nil
}

func (t *tabular[E]) Save() error {
	if err := t.requireReady("save"); err != nil {
		return err
	}
	paths := t.Artifacts()
	if err := artifacts.SaveObject(paths.Model, t.est); err != nil {
		return err
	}
	return artifacts.SaveObject(paths.Scaler, t.scaler)
}

func (t *tabular[E]) Load() error {
	paths, err := t.verify()
	if err != nil {
		return err
	}
	var est E
	if err := artifacts.LoadObject(paths.Model, &est); err != nil {
		return err
	}
	scaler := &features.MinMaxScaler{}
	if err := artifacts.LoadObject(paths.Scaler, scaler); err != nil {
		return err
	}
	t.est, t.scaler, t.ready = est, scaler, true
	return nil
}
