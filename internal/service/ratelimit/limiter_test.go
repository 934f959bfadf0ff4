package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(60, 2)
	l.now = func() time.Time { return now }

	if !l.Allow("u1") || !l.Allow("u1") {
		t.Fatalf("burst of 2 rejected")
	}
	if l.Allow("u1") {
		t.Fatalf("third call allowed without refill")
	}
	if !l.Allow("u2") {
		t.Fatalf("keys share a bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("u1") {
		t.Fatalf("token not refilled after one second")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := New(0, 1)
	for i := 0; i < 100; i++ {
		if !l.Allow("u") {
			t.Fatalf("disabled limiter rejected call %d", i)
		}
	}
}
