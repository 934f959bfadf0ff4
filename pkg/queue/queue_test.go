package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

var errFatal = errors.New("fatal")

func isFatal(err error) bool { return errors.Is(err, errFatal) }

func TestDecide(t *testing.T) {
	cases := []struct {
		name     string
		attempts int
		err      error
		want     outcome
	}{
		{"success", 0, nil, outcomeDone},
		{"transient first failure", 0, errors.New("redis down"), outcomeRetry},
		{"transient at limit", 3, errors.New("redis down"), outcomeDead},
		{"permanent", 0, fmt.Errorf("decode: %w", errFatal), outcomeDead},
		{"shutdown", 2, fmt.Errorf("store: %w", context.Canceled), outcomeRequeue},
	}
	for _, tc := range cases {
		msg := &Message{Attempts: tc.attempts}
		if got := decide(msg, tc.err, 3, isFatal); got != tc.want {
			t.Fatalf("%s: want %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestDecideWithoutClassifier(t *testing.T) {
	if got := decide(&Message{}, errFatal, 1, nil); got != outcomeRetry {
		t.Fatalf("want retry without a classifier, got %d", got)
	}
}

func TestKeyLayout(t *testing.T) {
	q := NewRedisQueue(nil, nil, WithKeyPrefix("mdk:q"))
	if got := q.key("train", "retry"); got != "mdk:q:train:retry" {
		t.Fatalf("unexpected key %q", got)
	}
	q = NewRedisQueue(nil, nil, WithKeyPrefix(""), WithWorkers(0), WithRetry(5, 0))
	if q.cfg.KeyPrefix != "mdk:queue" || q.cfg.Workers != 1 || q.cfg.RetryLimit != 5 || q.cfg.RetryDelay <= 0 {
		t.Fatalf("defaults not kept: %+v", q.cfg)
	}
}
