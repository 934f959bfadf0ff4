package models

import (
	"errors"
	"math"
	"time"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
	"MDK/internal/services/artifacts"
	"MDK/internal/services/features"
	"MDK/pkg/logger"
	"MDK/pkg/ml/arima"
	"MDK/pkg/util"
)

// stationarityThreshold is the ADF p-value above which the series is
// differenced once before the order search.
const stationarityThreshold = 0.05

func init() {
	Register(Arima, newArima)
}

// arimaState is what model.pkl holds.
type arimaState struct {
	Model       *arima.Model
	BestParams  arima.Order
	PValue      float64
	Differenced bool
	LastDate    time.Time
}

type arimaFamily struct {
	base
	cfg      ArimaConfig
	interval util.Interval
	state    *arimaState
}

func newArima(env Env, overrides map[string]interface{}) (service.Model, error) {
	var cfg ArimaConfig
	if err := bindConfig(Arima, &cfg, env.Seed, overrides); err != nil {
		return nil, err
	}
	iv, err := util.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, domain.Validation(Arima, "interval: %v", err)
	}
	return &arimaFamily{base: newBase(Arima, service.NativeObject, false, env), cfg: cfg, interval: iv}, nil
}

// closes resamples dated input to the configured interval.
func (a *arimaFamily) closes(ds *models.Dataset) (*models.Dataset, error) {
	if !ds.HasDates() {
		return ds, nil
	}
	return features.Resample(ds, a.interval)
}

func (a *arimaFamily) Train(ds *models.Dataset) error {
	series, err := a.closes(ds)
	if err != nil {
		return err
	}
	y := series.Close
	adf, err := arima.ADF(y)
	if errors.Is(err, arima.ErrTooShort) {
		return domain.InsufficientData(a.op("train"), 8, len(y))
	}
	if err != nil {
		return domain.TrainingFailure(a.op("train"), err)
	}
	st := &arimaState{PValue: adf.PValue, Differenced: adf.PValue > stationarityThreshold}
	extraD := 0
	if st.Differenced {
		extraD = 1
		a.log.Debug("series not stationary, differencing once", logger.Float64("adf_pvalue", adf.PValue))
	}

	order := arima.Order{P: a.cfg.BestParams[0], D: a.cfg.BestParams[1] + extraD, Q: a.cfg.BestParams[2]}
	var model *arima.Model
	if a.cfg.UseGridSearch {
		model, err = a.search(y, extraD)
	} else {
		model, err = arima.Fit(y, order, a.cfg.MaxIter)
	}
	if err != nil {
		return domain.TrainingFailure(a.op("train"), err)
	}
	st.Model, st.BestParams = model, model.Order
	if series.HasDates() {
		st.LastDate = series.Dates[series.Len()-1]
	}
	a.state, a.ready = st, true
	a.eval = models.Evaluation{
		TrainRows: len(y),
		Order:     []int{model.Order.P, model.Order.D, model.Order.Q},
		AIC:       model.AIC,
		Extra:     map[string]float64{"adf_pvalue": adf.PValue},
	}
	a.log.Info("arima fitted",
		logger.String("order", model.Order.String()),
		logger.Float64("aic", model.AIC))
	return a.Save()
}

// search fits every candidate order and keeps the lowest AIC. Candidates
// that fail to fit are skipped.
func (a *arimaFamily) search(y []float64, extraD int) (*arima.Model, error) {
	var best *arima.Model
	var lastErr error
	for _, p := range a.cfg.PValues {
		for _, d := range a.cfg.DValues {
			for _, q := range a.cfg.QValues {
				m, err := arima.Fit(y, arima.Order{P: p, D: d + extraD, Q: q}, a.cfg.MaxIter)
				if err != nil {
					lastErr = err
					continue
				}
				if best == nil || m.AIC < best.AIC {
					best = m
				}
			}
		}
	}
	if best == nil {
		if lastErr == nil {
			lastErr = errors.New("no candidate orders")
		}
		return nil, lastErr
	}
	return best, nil
}

// Inference rolls the fitted model forward over as many steps as the
// input has rows and re-anchors the path on the input's last level.
func (a *arimaFamily) Inference(ds *models.Dataset) (*models.Predictions, error) {
	if err := a.requireReady("inference"); err != nil {
		return nil, err
	}
	series, err := a.closes(ds)
	if err != nil {
		return nil, err
	}
	n := series.Len()
	if n == 0 {
		return nil, domain.InsufficientData(a.op("inference"), 1, 0)
	}
	path := a.state.Model.Forecast(n)
	if a.state.BestParams.D > 0 {
		steps := features.Difference(append([]float64{a.state.Model.Last()}, path...), 1)
		path = features.Integrate(steps, series.Close, 1)
	}
	out := models.NewPredictions(series.RowIndex(), series.Dates)
	copy(out.Values, priceOnly(path))
	return out, nil
}

// Forecast continues from the training state.
func (a *arimaFamily) Forecast(steps int, _ *models.Dataset) (*models.Forecast, error) {
	if err := a.requireReady("forecast"); err != nil {
		return nil, err
	}
	if err := a.checkSteps(steps); err != nil {
		return nil, err
	}
	fc := &models.Forecast{Supported: true, Steps: steps, Values: priceOnly(a.state.Model.Forecast(steps))}
	if !a.state.LastDate.IsZero() {
		fc.Dates = make([]time.Time, steps)
		for k := range fc.Dates {
			fc.Dates[k] = a.interval.Add(a.state.LastDate, k+1)
		}
	}
	return fc, nil
}

// BestParams is the order chosen at training time.
func (a *arimaFamily) BestParams() (arima.Order, bool) {
	if a.state == nil {
		return arima.Order{}, false
	}
	return a.state.BestParams, true
}

func (a *arimaFamily) Save() error {
	if err := a.requireReady("save"); err != nil {
		return err
	}
	return artifacts.SaveObject(a.Artifacts().Model, a.state)
}

func (a *arimaFamily) Load() error {
	paths, err := a.verify()
	if err != nil {
		return err
	}
	st := &arimaState{}
	if err := artifacts.LoadObject(paths.Model, st); err != nil {
		return err
	}
	a.state, a.ready = st, true
	return nil
}

// priceOnly marks negative values missing.
func priceOnly(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		if v < 0 {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}
