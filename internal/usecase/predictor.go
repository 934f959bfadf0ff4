package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	domrepo "MDK/internal/domain/repository"
	"MDK/internal/domain/service"
	"MDK/internal/service/cache"
	modelsvc "MDK/internal/services/models"
	"MDK/internal/services/preprocess"
	"MDK/pkg/logger"
	"MDK/pkg/metrics"
)

const (
	DefaultRecentRows = 100
	MinRecentRows     = 60
)

// Next-value sources reported by PredictNext.
const (
	SourceForecast  = "forecast"
	SourceInference = "inference"
)

// NextPrediction is the single next value for an experiment.
type NextPrediction struct {
	ExperimentID string     `json:"experiment_id"`
	ModelName    string     `json:"model_name"`
	Value        float64    `json:"prediction"`
	Date         *time.Time `json:"date,omitempty"`
	Source       string     `json:"source"`
	Rows         int        `json:"rows_used"`
}

// Predictor serves completed experiments. Loaded models are cached by
// experiment id and every call on one instance is serialised.
type Predictor struct {
	store      domrepo.ExperimentStore
	source     domrepo.DatasetSource
	factory    *modelsvc.Factory
	cache      *cache.ModelCache
	metrics    domrepo.Metrics
	log        *logger.Logger
	recentRows int
}

type PredictorOption func(*Predictor)

// WithRecentRows sets how many trailing rows PredictNext uses. Values below
// MinRecentRows are raised to it.
func WithRecentRows(n int) PredictorOption {
	return func(p *Predictor) { p.recentRows = n }
}

func WithPredictorMetrics(m domrepo.Metrics) PredictorOption {
	return func(p *Predictor) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithPredictorLogger(l *logger.Logger) PredictorOption {
	return func(p *Predictor) {
		if l != nil {
			p.log = l
		}
	}
}

func NewPredictor(store domrepo.ExperimentStore, source domrepo.DatasetSource, factory *modelsvc.Factory, mc *cache.ModelCache, opts ...PredictorOption) *Predictor {
	p := &Predictor{
		store:      store,
		source:     source,
		factory:    factory,
		cache:      mc,
		metrics:    metrics.Nop{},
		log:        logger.Nop(),
		recentRows: DefaultRecentRows,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.recentRows <= 0 {
		p.recentRows = DefaultRecentRows
	}
	if p.recentRows < MinRecentRows {
		p.recentRows = MinRecentRows
	}
	return p
}

// CachedModels lists the experiment ids with a loaded model.
func (p *Predictor) CachedModels() []string { return p.cache.Keys() }

// Invalidate drops the loaded model of id.
func (p *Predictor) Invalidate(id string) { p.cache.Evict(id) }

// Inference runs the experiment's model over rows.
func (p *Predictor) Inference(ctx context.Context, id string, rows []models.Candle) (*models.Predictions, error) {
	ds, err := preprocess.Preprocess(preprocess.FromCandles(rows))
	if err != nil {
		return nil, err
	}
	var out *models.Predictions
	err = p.call(ctx, id, "inference", func(_ *models.Experiment, m service.Model) error {
		var err error
		out, err = m.Inference(ds)
		return err
	})
	return out, err
}

// Forecast predicts steps future values. Without rows the most recent rows
// of the experiment dataset serve as history.
func (p *Predictor) Forecast(ctx context.Context, id string, steps int, rows []models.Candle) (*models.Forecast, error) {
	if steps < 1 {
		return nil, domain.Validation("predictor.forecast", "steps must be >= 1, got %d", steps)
	}
	var out *models.Forecast
	err := p.call(ctx, id, "forecast", func(exp *models.Experiment, m service.Model) error {
		history, err := p.history(ctx, exp, rows)
		if err != nil {
			return err
		}
		out, err = m.Forecast(steps, history)
		return err
	})
	return out, err
}

// PredictNext forecasts one step from the latest recent rows. Families
// without native forecasting answer with their last inference value.
func (p *Predictor) PredictNext(ctx context.Context, id string) (*NextPrediction, error) {
	var out *NextPrediction
	err := p.call(ctx, id, "predict_next", func(exp *models.Experiment, m service.Model) error {
		history, err := p.history(ctx, exp, nil)
		if err != nil {
			return err
		}
		out = &NextPrediction{ExperimentID: exp.ID, ModelName: exp.ModelName, Rows: history.Len()}

		fc, err := m.Forecast(1, history)
		if err != nil {
			return err
		}
		if fc.Supported && len(fc.Values) > 0 {
			out.Value, out.Source = fc.Values[0], SourceForecast
			if len(fc.Dates) > 0 {
				d := fc.Dates[0]
				out.Date = &d
			}
			return nil
		}

		preds, err := m.Inference(history)
		if err != nil {
			return err
		}
		v, ok := preds.Last()
		if !ok {
			return domain.InsufficientData("predictor.predict_next", history.Len()+1, history.Len())
		}
		out.Value, out.Source = v, SourceInference
		return nil
	})
	return out, err
}

// call loads the model of id and runs fn under the entry lock, recording
// the outcome.
func (p *Predictor) call(ctx context.Context, id, op string, fn func(*models.Experiment, service.Model) error) error {
	start := time.Now()
	exp, entry, err := p.load(ctx, id)
	name := "unknown"
	if exp != nil {
		name = exp.ModelName
	}
	if err == nil {
		err = entry.Do(func(m service.Model) error { return fn(exp, m) })
	}
	result := "ok"
	if err != nil {
		result = "error"
		p.log.Warn("serving call failed",
			logger.String("experiment_id", id),
			logger.String("op", op),
			logger.Error(err))
	}
	p.metrics.RecordInference(name, op, result, time.Since(start).Seconds())
	return err
}

func (p *Predictor) load(ctx context.Context, id string) (*models.Experiment, *cache.Entry, error) {
	exp, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if exp.Status != models.StatusCompleted {
		return exp, nil, domain.NotTrained(fmt.Sprintf("experiment %s is %s", exp.ID, exp.Status))
	}
	if exp.ArtifactDir == "" {
		return exp, nil, domain.ArtifactNotFound("predictor.load", "artifact dir of "+exp.ID)
	}
	entry, err := p.cache.GetOrLoad(id, func() (service.Model, error) {
		m, err := p.factory.WithSaveDirOf(exp.ArtifactDir).CreateModel(exp.ModelName, exp.ModelConfig)
		if err != nil {
			return nil, err
		}
		if err := m.Load(); err != nil {
			return nil, err
		}
		p.log.Info("model loaded",
			logger.String("experiment_id", id),
			logger.String("model", exp.ModelName))
		return m, nil
	})
	return exp, entry, err
}

func (p *Predictor) history(ctx context.Context, exp *models.Experiment, rows []models.Candle) (*models.Dataset, error) {
	if len(rows) == 0 {
		var err error
		rows, err = recentRows(ctx, p.source, exp.Dataset, p.recentRows)
		if err != nil {
			return nil, err
		}
	}
	return preprocess.Preprocess(preprocess.FromCandles(rows))
}

// IsNotFound reports whether err means the experiment does not exist.
func IsNotFound(err error) bool { return errors.Is(err, domrepo.ErrExperimentNotFound) }
