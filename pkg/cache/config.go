package cache

import "time"

// RedisConfig is what NewRedisCache needs to reach a server.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
	// KeyPrefix is joined to every key with GenerateKey. Empty disables it.
	KeyPrefix string
}

type RedisOption func(*RedisConfig)

// WithRedisEndpoint sets address, password and logical database.
func WithRedisEndpoint(addr, password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Addr, c.Password, c.DB = addr, password, db
	}
}

// WithRedisPool sizes the connection pool. Zero values keep the defaults.
func WithRedisPool(size, minIdle int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		if size > 0 {
			c.PoolSize = size
		}
		if minIdle > 0 {
			c.MinIdleConns = minIdle
		}
		if timeout > 0 {
			c.PoolTimeout = timeout
		}
	}
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.KeyPrefix = prefix }
}

type memoryConfig struct {
	capacity   int
	sweepEvery time.Duration
}

type MemoryOption func(*memoryConfig)

// WithCapacity bounds the number of keys; the least recently used key is
// evicted past it. n <= 0 means unbounded.
func WithCapacity(n int) MemoryOption {
	return func(c *memoryConfig) { c.capacity = n }
}

// WithSweepEvery sets how often expired keys are purged.
func WithSweepEvery(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if d > 0 {
			c.sweepEvery = d
		}
	}
}
