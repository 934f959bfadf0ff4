// Package cache keeps loaded model instances in memory between serving calls.
package cache

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"MDK/internal/domain/service"
)

// Cache event labels reported to the OnEvent callback.
const (
	EventHit       = "hit"
	EventMiss      = "miss"
	EventEvict     = "evict"
	EventLoadError = "load_error"
)

// Entry is one loaded model. Calls through Do are serialised because model
// instances are not guaranteed reentrant.
type Entry struct {
	mu      sync.Mutex
	model   service.Model
	expires time.Time
}

// Do runs fn with exclusive access to the model.
func (e *Entry) Do(fn func(service.Model) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.model)
}

// Name returns the model family of the entry.
func (e *Entry) Name() string { return e.model.Name() }

// ModelCache is a TTL cache of loaded models keyed by experiment id.
// Concurrent misses for the same key share one load.
type ModelCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*Entry
	group   singleflight.Group
	now     func() time.Time
	onEvent func(string)
}

type Option func(*ModelCache)

// WithEventHook reports hit, miss, evict and load_error events.
func WithEventHook(fn func(string)) Option {
	return func(c *ModelCache) { c.onEvent = fn }
}

func withClock(now func() time.Time) Option {
	return func(c *ModelCache) { c.now = now }
}

// NewModelCache creates a cache. ttl <= 0 keeps entries until Evict.
func NewModelCache(ttl time.Duration, opts ...Option) *ModelCache {
	c := &ModelCache{
		ttl:     ttl,
		entries: make(map[string]*Entry),
		now:     time.Now,
		onEvent: func(string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrLoad returns the cached entry for id, calling load on a miss or
// after expiry. A hit extends the entry's lifetime.
func (c *ModelCache) GetOrLoad(id string, load func() (service.Model, error)) (*Entry, error) {
	if e, ok := c.get(id); ok {
		c.onEvent(EventHit)
		return e, nil
	}
	c.onEvent(EventMiss)

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		if e, ok := c.get(id); ok {
			return e, nil
		}
		m, err := load()
		if err != nil {
			return nil, err
		}
		e := &Entry{model: m}
		c.mu.Lock()
		e.expires = c.deadline()
		c.entries[id] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		c.onEvent(EventLoadError)
		return nil, err
	}
	return v.(*Entry), nil
}

func (c *ModelCache) get(id string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, id)
		c.onEvent(EventEvict)
		return nil, false
	}
	e.expires = c.deadline()
	return e, true
}

func (c *ModelCache) deadline() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

// Evict drops id from the cache.
func (c *ModelCache) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; ok {
		delete(c.entries, id)
		c.onEvent(EventEvict)
	}
}

// Sweep removes expired entries and returns how many were dropped.
func (c *ModelCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for id, e := range c.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(c.entries, id)
			c.onEvent(EventEvict)
			n++
		}
	}
	return n
}

// Keys lists the cached experiment ids, sorted.
func (c *ModelCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	now := c.now()
	for id, e := range c.entries {
		if e.expires.IsZero() || !now.After(e.expires) {
			keys = append(keys, id)
		}
	}
	sort.Strings(keys)
	return keys
}
