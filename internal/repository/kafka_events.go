package repository

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"MDK/internal/domain/models"
	domrepo "MDK/internal/domain/repository"
)

// Publisher is the producer surface the Kafka adapters need.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...kafka.Header) error
	Close() error
}

// KafkaEventPublisher writes experiment events keyed by experiment id, so
// the events of one experiment keep their order.
type KafkaEventPublisher struct {
	p     Publisher
	topic string
}

func NewKafkaEventPublisher(p Publisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{p: p, topic: topic}
}

func (k *KafkaEventPublisher) PublishEvent(ctx context.Context, ev *models.ExperimentEvent) error {
	return k.p.Publish(ctx, k.topic, []byte(ev.ExperimentID), ev,
		kafka.Header{Key: "status", Value: []byte(ev.Status)})
}

func (k *KafkaEventPublisher) Close() error { return k.p.Close() }

// KafkaJobDispatcher enqueues training jobs on the jobs topic.
type KafkaJobDispatcher struct {
	p     Publisher
	topic string
}

func NewKafkaJobDispatcher(p Publisher, topic string) *KafkaJobDispatcher {
	return &KafkaJobDispatcher{p: p, topic: topic}
}

func (k *KafkaJobDispatcher) Dispatch(ctx context.Context, job *models.TrainingJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return k.p.Publish(ctx, k.topic, []byte(job.ExperimentID), job,
		kafka.Header{Key: "trace_id", Value: []byte(job.ExperimentID)})
}

// LogDigestPublisher ships logger digests to Kafka.
type LogDigestPublisher struct {
	p Publisher
}

func NewLogDigestPublisher(p Publisher) *LogDigestPublisher {
	return &LogDigestPublisher{p: p}
}

func (l *LogDigestPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return l.p.Publish(ctx, topic, nil, payload)
}

// NopEventPublisher drops events.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishEvent(context.Context, *models.ExperimentEvent) error { return nil }
func (NopEventPublisher) Close() error                                             { return nil }

var (
	_ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
	_ domrepo.JobDispatcher  = (*KafkaJobDispatcher)(nil)
	_ domrepo.EventPublisher = NopEventPublisher{}
)
