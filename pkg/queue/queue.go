// Package queue is a Redis list backed work queue with delayed retries and
// a dead-letter list. It carries training jobs when Kafka is not deployed.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Handler processes the payloads enqueued under its topic.
type Handler interface {
	Topic() string
	Handle(ctx context.Context, payload []byte) error
}

// Config controls workers and retry behaviour.
type Config struct {
	Workers     int
	RetryLimit  int
	RetryDelay  time.Duration
	PollTimeout time.Duration
	KeyPrefix   string
}

type Option func(*RedisQueue)

func WithWorkers(n int) Option {
	return func(q *RedisQueue) {
		if n > 0 {
			q.cfg.Workers = n
		}
	}
}

// WithRetry sets how many times a failed message is re-enqueued and after
// how long.
func WithRetry(limit int, delay time.Duration) Option {
	return func(q *RedisQueue) {
		q.cfg.RetryLimit = limit
		if delay > 0 {
			q.cfg.RetryDelay = delay
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(q *RedisQueue) {
		if prefix != "" {
			q.cfg.KeyPrefix = prefix
		}
	}
}

// WithPermanent classifies errors that must skip retries.
func WithPermanent(fn func(error) bool) Option {
	return func(q *RedisQueue) { q.permanent = fn }
}

// Message is the envelope stored in Redis.
type Message struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeRetry
	outcomeDead
	outcomeRequeue
)

// decide returns what to do with msg after its handler returned err.
func decide(msg *Message, err error, limit int, permanent func(error) bool) outcome {
	switch {
	case err == nil:
		return outcomeDone
	case errors.Is(err, context.Canceled):
		return outcomeRequeue
	case permanent != nil && permanent(err):
		return outcomeDead
	case msg.Attempts < limit:
		return outcomeRetry
	}
	return outcomeDead
}
