// Package ratelimit throttles training submissions per caller.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	limit rate.Limit
	burst int
	now   func() time.Time
}

// New allows perMinute events per key with bursts of burst. perMinute <= 0
// disables limiting.
func New(perMinute float64, burst int) *Limiter {
	lim := rate.Inf
	if perMinute > 0 {
		lim = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{m: make(map[string]*rate.Limiter), limit: lim, burst: burst, now: time.Now}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.m[key] = b
	}
	l.mu.Unlock()
	return b.AllowN(l.now(), 1)
}
