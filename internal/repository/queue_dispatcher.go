package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MDK/internal/domain/models"
	domrepo "MDK/internal/domain/repository"
)

// Enqueuer is the producer side of pkg/queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, topic string, payload []byte) error
}

// QueueJobDispatcher pushes training jobs onto a Redis work queue.
type QueueJobDispatcher struct {
	q     Enqueuer
	topic string
}

func NewQueueJobDispatcher(q Enqueuer, topic string) *QueueJobDispatcher {
	return &QueueJobDispatcher{q: q, topic: topic}
}

func (d *QueueJobDispatcher) Dispatch(ctx context.Context, job *models.TrainingJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return d.q.Enqueue(ctx, d.topic, b)
}

var _ domrepo.JobDispatcher = (*QueueJobDispatcher)(nil)
