package models

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/floats"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
	"MDK/internal/services/artifacts"
	"MDK/pkg/logger"
	"MDK/pkg/ml/prophet"
	"MDK/pkg/util"
)

// capHeadroom sets the logistic capacity above the largest observed close.
const capHeadroom = 1.1

func init() {
	Register(Prophet, newProphet)
}

type prophetFamily struct {
	base
	cfg   ProphetConfig
	model *prophet.Model
}

func newProphet(env Env, overrides map[string]interface{}) (service.Model, error) {
	var cfg ProphetConfig
	if err := bindConfig(Prophet, &cfg, env.Seed, overrides); err != nil {
		return nil, err
	}
	return &prophetFamily{base: newBase(Prophet, service.NativeObject, false, env), cfg: cfg}, nil
}

func (p *prophetFamily) engineConfig() prophet.Config {
	return prophet.Config{
		Growth:                p.cfg.Growth,
		ChangepointPriorScale: p.cfg.ChangepointPriorScale,
		NChangepoints:         p.cfg.NChangepoints,
		ChangepointRange:      p.cfg.ChangepointRange,
		SeasonalityMode:       p.cfg.SeasonalityMode,
		Yearly:                p.cfg.YearlySeasonality,
		Weekly:                p.cfg.WeeklySeasonality,
		Daily:                 p.cfg.DailySeasonality,
	}
}

func naive(dates []time.Time) []time.Time {
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		out[i] = util.StripZone(d)
	}
	return out
}

func (p *prophetFamily) Train(ds *models.Dataset) error {
	if !ds.HasDates() {
		return domain.Validation(p.op("train"), "missing %s column", models.ColDate)
	}
	m, err := prophet.Fit(naive(ds.Dates), ds.Close, p.engineConfig())
	if errors.Is(err, prophet.ErrTooShort) {
		return domain.InsufficientData(p.op("train"), 2, ds.Len())
	}
	if err != nil {
		return domain.TrainingFailure(p.op("train"), err)
	}
	p.model, p.ready = m, true
	p.eval = score(ds.Close, m.Predict(naive(ds.Dates), m.HistoryCap, m.HistoryFloor))
	p.eval.TrainRows, p.eval.ValRows = ds.Len(), 0
	p.log.Info("prophet fitted",
		logger.Int("rows", ds.Len()),
		logger.Int("changepoints", len(m.Changepoints)))
	return p.Save()
}

// Inference predicts at the input dates. Logistic capacity comes from
// the input's own closes.
func (p *prophetFamily) Inference(ds *models.Dataset) (*models.Predictions, error) {
	if err := p.requireReady("inference"); err != nil {
		return nil, err
	}
	if !ds.HasDates() {
		return nil, domain.Validation(p.op("inference"), "missing %s column", models.ColDate)
	}
	capacity, floor := 0.0, 0.0
	if p.cfg.Growth == prophet.GrowthLogistic {
		capacity = floats.Max(ds.Close) * capHeadroom
	}
	dates := naive(ds.Dates)
	out := models.NewPredictions(ds.RowIndex(), dates)
	copy(out.Values, p.model.Predict(dates, capacity, floor))
	return out, nil
}

// Forecast extends the history by daily periods using the fitted capacity.
// steps == 0 means the configured number of periods.
func (p *prophetFamily) Forecast(steps int, _ *models.Dataset) (*models.Forecast, error) {
	if err := p.requireReady("forecast"); err != nil {
		return nil, err
	}
	if steps == 0 {
		steps = p.cfg.Periods
	}
	if err := p.checkSteps(steps); err != nil {
		return nil, err
	}
	dates := make([]time.Time, steps)
	for k := range dates {
		dates[k] = p.model.LastDate.AddDate(0, 0, k+1)
	}
	return &models.Forecast{
		Supported: true,
		Steps:     steps,
		Dates:     dates,
		Values:    p.model.Predict(dates, p.model.HistoryCap, p.model.HistoryFloor),
	}, nil
}

func (p *prophetFamily) Save() error {
	if err := p.requireReady("save"); err != nil {
		return err
	}
	return artifacts.SaveObject(p.Artifacts().Model, p.model)
}

func (p *prophetFamily) Load() error {
	paths, err := p.verify()
	if err != nil {
		return err
	}
	m := &prophet.Model{}
	if err := artifacts.LoadObject(paths.Model, m); err != nil {
		return err
	}
	p.model, p.ready = m, true
	return nil
}
