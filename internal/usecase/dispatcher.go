package usecase

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"MDK/internal/domain/models"
	"MDK/pkg/logger"
)

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// JobRunner runs one training job.
type JobRunner interface {
	Run(ctx context.Context, job *models.TrainingJob) error
}

// InProcessDispatcher runs jobs on goroutines of this process, at most
// workers at a time. It stands in for the Kafka jobs topic when Kafka is
// disabled.
type InProcessDispatcher struct {
	runner JobRunner
	sem    *semaphore.Weighted
	log    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewInProcessDispatcher(runner JobRunner, workers int, log *logger.Logger) *InProcessDispatcher {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InProcessDispatcher{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(workers)),
		log:    log.With(logger.String("component", "dispatcher")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Dispatch queues job and returns without waiting for it to run.
func (d *InProcessDispatcher) Dispatch(_ context.Context, job *models.TrainingJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			d.log.Warn("job dropped on shutdown", logger.String("experiment_id", job.ExperimentID))
			return
		}
		defer d.sem.Release(1)
		if err := d.runner.Run(context.WithoutCancel(d.ctx), job); err != nil {
			d.log.Error("training job failed",
				logger.String("experiment_id", job.ExperimentID),
				logger.Error(err))
		}
	}()
	return nil
}

// Close stops accepting jobs, drops queued ones and waits for running jobs
// until ctx expires.
func (d *InProcessDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every dispatched job has finished.
func (d *InProcessDispatcher) Wait() { d.wg.Wait() }
