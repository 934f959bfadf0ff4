package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	domrepo "MDK/internal/domain/repository"
	modelsvc "MDK/internal/services/models"
	"MDK/pkg/logger"
	"MDK/pkg/util"
)

// ExperimentService accepts training requests and tracks their records.
type ExperimentService struct {
	store    domrepo.ExperimentStore
	dispatch domrepo.JobDispatcher
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewExperimentService(store domrepo.ExperimentStore, dispatch domrepo.JobDispatcher, events domrepo.EventPublisher, metrics domrepo.Metrics, log *logger.Logger) *ExperimentService {
	if log == nil {
		log = logger.Nop()
	}
	return &ExperimentService{
		store:    store,
		dispatch: dispatch,
		events:   events,
		metrics:  metrics,
		log:      log.With(logger.String("component", "experiments")),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create stores a pending experiment and dispatches its training job.
func (s *ExperimentService) Create(ctx context.Context, req *models.CreateExperimentRequest) (*models.Experiment, error) {
	if !modelsvc.Registered(req.ModelName) {
		return nil, domain.UnknownModel(req.ModelName)
	}
	ref, err := datasetRef(req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	exp := &models.Experiment{
		ID:          s.newID(),
		ProjectID:   req.ProjectID,
		UserID:      req.UserID,
		ModelName:   req.ModelName,
		ModelConfig: req.ModelConfig,
		Dataset:     ref,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, exp); err != nil {
		s.metrics.RecordError("experiments_store")
		return nil, fmt.Errorf("store experiment: %w", err)
	}
	publish(ctx, s.events, s.metrics, s.log, exp)

	if err := s.dispatch.Dispatch(ctx, &models.TrainingJob{ExperimentID: exp.ID, EnqueuedAt: now}); err != nil {
		s.metrics.RecordError("experiments_dispatch")
		exp.Status = models.StatusFailed
		exp.ErrorKind = ErrorKindInternal
		exp.Error = "dispatch training job: " + err.Error()
		exp.UpdatedAt = s.now().UTC()
		if uerr := s.store.Update(ctx, exp); uerr != nil {
			s.log.Error("mark undispatched experiment failed", logger.String("experiment_id", exp.ID), logger.Error(uerr))
		}
		return nil, fmt.Errorf("dispatch training job: %w", err)
	}

	s.log.Info("experiment accepted",
		logger.String("experiment_id", exp.ID),
		logger.String("model", exp.ModelName),
		logger.Int("inline_rows", len(ref.Rows)),
		logger.String("symbol", ref.Symbol))
	return exp, nil
}

// Get returns the experiment record.
func (s *ExperimentService) Get(ctx context.Context, id string) (*models.Experiment, error) {
	return s.store.Get(ctx, id)
}

func datasetRef(req *models.CreateExperimentRequest) (models.DatasetRef, error) {
	ref := models.DatasetRef{Symbol: req.Symbol, Rows: req.Rows}
	if len(ref.Rows) > 0 {
		ref.Symbol = ""
		return ref, nil
	}
	if ref.Symbol == "" {
		return ref, domain.Validation("create experiment", "either rows or symbol is required")
	}
	if req.From != "" {
		t, ok := util.ParseTime(req.From)
		if !ok {
			return ref, domain.Validation("create experiment", "invalid from %q", req.From)
		}
		ref.From = t
	}
	if req.To != "" {
		t, ok := util.ParseTime(req.To)
		if !ok {
			return ref, domain.Validation("create experiment", "invalid to %q", req.To)
		}
		ref.To = t
	}
	if !ref.From.IsZero() && !ref.To.IsZero() && ref.From.After(ref.To) {
		return ref, domain.Validation("create experiment", "from must be <= to")
	}
	return ref, nil
}
