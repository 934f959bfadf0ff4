package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	domrepo "MDK/internal/domain/repository"
	pkgkafka "MDK/pkg/kafka"
	"MDK/pkg/logger"
	"MDK/pkg/metrics"
)

// ErrorKindInternal labels failures outside the domain taxonomy.
const ErrorKindInternal = "InternalError"

const trainLockTTL = 6 * time.Hour

// TrainingRunner executes training jobs against stored experiments. Each job
// gets exactly one training attempt; failures are recorded on the experiment
// rather than retried.
type TrainingRunner struct {
	topic       string
	artifactDir string
	trainer     *Trainer
	store       domrepo.ExperimentStore
	source      domrepo.DatasetSource
	events      domrepo.EventPublisher
	locker      domrepo.Locker
	metrics     domrepo.Metrics
	log         *logger.Logger
	now         func() time.Time
}

// RunnerDeps groups the collaborators of a TrainingRunner. Source, Events
// and Locker may be nil.
type RunnerDeps struct {
	Trainer *Trainer
	Store   domrepo.ExperimentStore
	Source  domrepo.DatasetSource
	Events  domrepo.EventPublisher
	Locker  domrepo.Locker
	Metrics domrepo.Metrics
	Log     *logger.Logger
}

func NewTrainingRunner(topic, artifactDir string, deps RunnerDeps) *TrainingRunner {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	return &TrainingRunner{
		topic:       topic,
		artifactDir: artifactDir,
		trainer:     deps.Trainer,
		store:       deps.Store,
		source:      deps.Source,
		events:      deps.Events,
		locker:      deps.Locker,
		metrics:     deps.Metrics,
		log:         deps.Log.With(logger.String("component", "training_runner")),
		now:         time.Now,
	}
}

func (r *TrainingRunner) Topic() string { return r.topic }

// Handle decodes a TrainingJob and runs it. Malformed payloads are permanent
// failures.
func (r *TrainingRunner) Handle(ctx context.Context, b []byte) error {
	var job models.TrainingJob
	if err := json.Unmarshal(b, &job); err != nil {
		r.metrics.RecordError("runner_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode training job: %w", err))
	}
	if job.ExperimentID == "" {
		return pkgkafka.Permanent(errors.New("training job without experiment_id"))
	}
	return r.Run(ctx, &job)
}

// Run trains the experiment named by job. A returned error means the job
// could not be processed (store unreachable, unknown experiment) and may be
// redelivered; training failures are recorded and return nil.
func (r *TrainingRunner) Run(ctx context.Context, job *models.TrainingJob) error {
	log := r.log.With(logger.String("experiment_id", job.ExperimentID))

	exp, err := r.store.Get(ctx, job.ExperimentID)
	if errors.Is(err, domrepo.ErrExperimentNotFound) {
		return pkgkafka.Permanent(err)
	}
	if err != nil {
		r.metrics.RecordError("runner_store")
		return fmt.Errorf("get experiment: %w", err)
	}
	if exp.Status == models.StatusCompleted || exp.Status == models.StatusFailed {
		log.Info("experiment already finished, skipping", logger.String("status", string(exp.Status)))
		return nil
	}

	if r.locker != nil {
		key := "train:" + exp.ID
		ok, err := r.locker.TryLock(ctx, key, trainLockTTL)
		if err != nil {
			return fmt.Errorf("claim experiment: %w", err)
		}
		if !ok {
			log.Info("experiment claimed by another worker, skipping")
			return nil
		}
		defer func() {
			if err := r.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				log.Warn("release claim", logger.Error(err))
			}
		}()
	}

	if err := r.transition(ctx, exp, models.StatusRunning, nil); err != nil {
		return err
	}
	log.Debug("training started",
		logger.String("model", exp.ModelName),
		logger.Any("model_config", exp.ModelConfig))

	start := r.now()
	res, trainErr := r.train(ctx, exp)
	elapsed := r.now().Sub(start).Seconds()

	if trainErr != nil {
		r.metrics.RecordTraining(exp.ModelName, string(models.StatusFailed), elapsed)
		log.Error("training failed", logger.String("model", exp.ModelName), logger.Error(trainErr))
		return r.transition(ctx, exp, models.StatusFailed, trainErr)
	}

	r.metrics.RecordTraining(exp.ModelName, string(models.StatusCompleted), elapsed)
	exp.Artifacts = &res.Artifacts
	exp.Evaluation = res.Evaluation
	log.Info("training completed",
		logger.String("model", exp.ModelName),
		logger.Float64("seconds", elapsed))
	return r.transition(ctx, exp, models.StatusCompleted, nil)
}

func (r *TrainingRunner) train(ctx context.Context, exp *models.Experiment) (*TrainingResult, error) {
	rows, err := loadRows(ctx, r.source, exp.Dataset)
	if err != nil {
		return nil, err
	}
	exp.ArtifactDir = filepath.Join(r.artifactDir, exp.ID)
	return r.trainer.Train(exp.ModelName, rows, exp.ArtifactDir, exp.ModelConfig)
}

// transition persists a status change and announces it. A failed publish is
// logged; a failed store write is returned.
func (r *TrainingRunner) transition(ctx context.Context, exp *models.Experiment, status models.ExperimentStatus, cause error) error {
	exp.Status = status
	exp.UpdatedAt = r.now().UTC()
	if cause != nil {
		exp.ErrorKind = errorKind(cause)
		exp.Error = cause.Error()
	}
	if err := r.store.Update(ctx, exp); err != nil {
		r.metrics.RecordError("runner_store")
		return fmt.Errorf("update experiment %s to %s: %w", exp.ID, status, err)
	}
	publish(ctx, r.events, r.metrics, r.log, exp)
	return nil
}

func errorKind(err error) string {
	if kind := domain.KindName(err); kind != "" {
		return kind
	}
	return ErrorKindInternal
}

func publish(ctx context.Context, events domrepo.EventPublisher, metrics domrepo.Metrics, log *logger.Logger, exp *models.Experiment) {
	if events == nil {
		return
	}
	ev := &models.ExperimentEvent{
		ExperimentID: exp.ID,
		ModelName:    exp.ModelName,
		Status:       exp.Status,
		ErrorKind:    exp.ErrorKind,
		Error:        exp.Error,
		Artifacts:    exp.Artifacts,
		At:           exp.UpdatedAt,
	}
	if err := events.PublishEvent(ctx, ev); err != nil {
		metrics.RecordError("events_publish")
		log.Warn("publish experiment event",
			logger.String("experiment_id", exp.ID),
			logger.String("status", string(exp.Status)),
			logger.Error(err))
	}
}

// loadRows resolves a dataset reference into rows: inline rows win,
// otherwise the symbol range is read from src.
func loadRows(ctx context.Context, src domrepo.DatasetSource, ref models.DatasetRef) ([]models.Candle, error) {
	if len(ref.Rows) > 0 {
		return ref.Rows, nil
	}
	if ref.Symbol == "" {
		return nil, domain.Validation("load dataset", "dataset has neither rows nor symbol")
	}
	if src == nil {
		return nil, domain.Validation("load dataset", "no dataset source configured for symbol %q", ref.Symbol)
	}
	to := ref.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	rows, err := src.GetCandles(ctx, ref.Symbol, ref.From, to)
	if err != nil {
		return nil, fmt.Errorf("load candles for %s: %w", ref.Symbol, err)
	}
	if len(rows) == 0 {
		return nil, domain.InsufficientData("load dataset", 1, 0)
	}
	return rows, nil
}

// recentRows returns at most n of the latest rows of ref.
func recentRows(ctx context.Context, src domrepo.DatasetSource, ref models.DatasetRef, n int) ([]models.Candle, error) {
	if len(ref.Rows) > 0 {
		rows := ref.Rows
		if len(rows) > n {
			rows = rows[len(rows)-n:]
		}
		return rows, nil
	}
	if ref.Symbol == "" || src == nil {
		return nil, domain.Validation("recent rows", "experiment dataset is not resolvable")
	}
	rows, err := src.GetLatestNCandles(ctx, ref.Symbol, n)
	if err != nil {
		return nil, fmt.Errorf("latest candles for %s: %w", ref.Symbol, err)
	}
	return rows, nil
}

var _ pkgkafka.MessageHandler = (*TrainingRunner)(nil)
