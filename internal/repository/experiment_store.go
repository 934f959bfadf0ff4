package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MDK/internal/domain/models"
	domrepo "MDK/internal/domain/repository"
	"MDK/pkg/cache"
)

// ExperimentStore keeps experiment records as JSON in a cache.Service:
// Redis in deployments, the in-memory cache otherwise.
type ExperimentStore struct {
	kv     cache.Service
	prefix string
	ttl    time.Duration
}

func NewExperimentStore(kv cache.Service, prefix string, ttl time.Duration) *ExperimentStore {
	return &ExperimentStore{kv: kv, prefix: prefix, ttl: ttl}
}

func (s *ExperimentStore) key(id string) string { return cache.GenerateKey(s.prefix, id) }

// Create fails if id already exists.
func (s *ExperimentStore) Create(ctx context.Context, e *models.Experiment) error {
	exists, err := s.kv.Exists(ctx, s.key(e.ID))
	if err != nil {
		return fmt.Errorf("create experiment %s: %w", e.ID, err)
	}
	if exists {
		return fmt.Errorf("experiment %s already exists", e.ID)
	}
	return s.put(ctx, e)
}

func (s *ExperimentStore) Get(ctx context.Context, id string) (*models.Experiment, error) {
	var e models.Experiment
	if err := s.kv.Get(ctx, s.key(id), &e); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, domrepo.ErrExperimentNotFound
		}
		return nil, fmt.Errorf("get experiment %s: %w", id, err)
	}
	return &e, nil
}

// Update overwrites an existing record.
func (s *ExperimentStore) Update(ctx context.Context, e *models.Experiment) error {
	exists, err := s.kv.Exists(ctx, s.key(e.ID))
	if err != nil {
		return fmt.Errorf("update experiment %s: %w", e.ID, err)
	}
	if !exists {
		return domrepo.ErrExperimentNotFound
	}
	return s.put(ctx, e)
}

func (s *ExperimentStore) put(ctx context.Context, e *models.Experiment) error {
	if err := s.kv.Set(ctx, s.key(e.ID), e, s.ttl); err != nil {
		return fmt.Errorf("write experiment %s: %w", e.ID, err)
	}
	return nil
}

var _ domrepo.ExperimentStore = (*ExperimentStore)(nil)
