package repository

import (
	"context"
	"errors"
	"time"

	"MDK/internal/domain/models"
)

// DatasetSource loads OHLCV history for training and serving.
type DatasetSource interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int) ([]models.Candle, error)
}

// ErrExperimentNotFound is returned by ExperimentStore.Get for unknown ids.
var ErrExperimentNotFound = errors.New("experiment not found")

// ExperimentStore persists experiment records.
type ExperimentStore interface {
	Create(ctx context.Context, e *models.Experiment) error
	Get(ctx context.Context, id string) (*models.Experiment, error)
	Update(ctx context.Context, e *models.Experiment) error
}

// EventPublisher announces experiment status transitions.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *models.ExperimentEvent) error
	Close() error
}

// JobDispatcher hands a training job to whatever runs it.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job *models.TrainingJob) error
}

// Metrics records training and serving telemetry.
type Metrics interface {
	RecordTraining(model, result string, seconds float64)
	RecordInference(model, op, result string, seconds float64)
	RecordCache(event string)
	RecordError(component string)
}

// Locker claims short-lived exclusive keys.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
