package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"MDK/pkg/logger"
)

// RedisQueue moves messages through three keys per topic:
// <prefix>:<topic>:messages (LPUSH/BRPOP), <prefix>:<topic>:retry (ZSET
// scored by due time) and <prefix>:<topic>:dlq.
type RedisQueue struct {
	log       *logger.Logger
	cfg       Config
	client    redis.UniversalClient
	permanent func(error) bool

	mu       sync.RWMutex
	handlers map[string]Handler
	running  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisQueue(client redis.UniversalClient, log *logger.Logger, opts ...Option) *RedisQueue {
	if log == nil {
		log = logger.Nop()
	}
	q := &RedisQueue{
		log:    log,
		client: client,
		cfg: Config{
			Workers:     1,
			RetryLimit:  3,
			RetryDelay:  10 * time.Second,
			PollTimeout: time.Second,
			KeyPrefix:   "mdk:queue",
		},
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Register adds the consumer for h.Topic(). Later registrations for the
// same topic are ignored.
func (q *RedisQueue) Register(h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.handlers[h.Topic()]; ok {
		q.log.Warn("queue handler already registered", logger.String("topic", h.Topic()))
		return
	}
	q.handlers[h.Topic()] = h
}

// Enqueue pushes payload onto topic. It does not require a local handler,
// so producer-only processes can share the queue with remote workers.
func (q *RedisQueue) Enqueue(ctx context.Context, topic string, payload []byte) error {
	msg := Message{
		ID:         uuid.NewString(),
		Topic:      topic,
		Payload:    json.RawMessage(payload),
		EnqueuedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key(topic, "messages"), b).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Start pings Redis and launches the workers and the retry mover for every
// registered topic.
func (q *RedisQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("queue already running")
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.client.Ping(pctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	if len(q.handlers) == 0 {
		q.running = true
		return nil
	}

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = stop
	q.running = true

	keys := make([]string, 0, len(q.handlers))
	for topic := range q.handlers {
		keys = append(keys, q.key(topic, "messages"))
	}
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(runCtx, i, keys)
	}
	q.wg.Add(1)
	go q.retryMover(runCtx)

	q.log.Info("redis queue started",
		logger.Int("workers", q.cfg.Workers),
		logger.Int("topics", len(keys)))
	return nil
}

// Stop cancels the workers and waits for in-flight handlers or ctx.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	case <-done:
		q.log.Info("redis queue stopped")
		return nil
	}
}

// DeadLetters returns up to n parked messages of topic, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context, topic string, n int64) ([]Message, error) {
	raw, err := q.client.LRange(ctx, q.key(topic, "dlq"), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange dlq: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (q *RedisQueue) worker(ctx context.Context, id int, keys []string) {
	defer q.wg.Done()
	for ctx.Err() == nil {
		res, err := q.client.BRPop(ctx, q.cfg.PollTimeout, keys...).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.log.Error("brpop", logger.Int("worker", id), logger.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			q.log.Error("drop undecodable message", logger.String("key", res[0]), logger.Error(err))
			continue
		}
		q.process(ctx, &msg)
	}
}

func (q *RedisQueue) process(ctx context.Context, msg *Message) {
	q.mu.RLock()
	h, ok := q.handlers[msg.Topic]
	q.mu.RUnlock()
	if !ok {
		q.park(msg, errors.New("no handler for topic"))
		return
	}

	err := h.Handle(context.WithoutCancel(ctx), msg.Payload)
	switch decide(msg, err, q.cfg.RetryLimit, q.permanent) {
	case outcomeDone:
	case outcomeRequeue:
		q.push(q.key(msg.Topic, "messages"), msg)
	case outcomeRetry:
		msg.Attempts++
		msg.LastError = err.Error()
		due := time.Now().Add(q.cfg.RetryDelay)
		q.schedule(msg, due)
		q.log.Warn("message scheduled for retry",
			logger.String("id", msg.ID),
			logger.String("topic", msg.Topic),
			logger.Int("attempt", msg.Attempts),
			logger.Error(err))
	case outcomeDead:
		q.park(msg, err)
	}
}

func (q *RedisQueue) park(msg *Message, err error) {
	msg.LastError = err.Error()
	q.push(q.key(msg.Topic, "dlq"), msg)
	q.log.Error("message moved to dead-letter list",
		logger.String("id", msg.ID),
		logger.String("topic", msg.Topic),
		logger.Int("attempts", msg.Attempts),
		logger.Error(err))
}

func (q *RedisQueue) push(key string, msg *Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("marshal message", logger.Error(err))
		return
	}
	if err := q.client.LPush(context.Background(), key, b).Err(); err != nil {
		q.log.Error("lpush", logger.String("key", key), logger.Error(err))
	}
}

func (q *RedisQueue) schedule(msg *Message, due time.Time) {
	b, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("marshal retry", logger.Error(err))
		return
	}
	z := redis.Z{Score: float64(due.Unix()), Member: b}
	if err := q.client.ZAdd(context.Background(), q.key(msg.Topic, "retry"), z).Err(); err != nil {
		q.log.Error("zadd retry", logger.Error(err))
	}
}

func (q *RedisQueue) retryMover(ctx context.Context) {
	defer q.wg.Done()
	t := time.NewTicker(q.cfg.PollTimeout * 5)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			q.mu.RLock()
			topics := make([]string, 0, len(q.handlers))
			for topic := range q.handlers {
				topics = append(topics, topic)
			}
			q.mu.RUnlock()
			for _, topic := range topics {
				q.moveDue(ctx, topic)
			}
		}
	}
}

func (q *RedisQueue) moveDue(ctx context.Context, topic string) {
	retryKey := q.key(topic, "retry")
	due, err := q.client.ZRangeByScore(ctx, retryKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			q.log.Error("fetch retry messages", logger.Error(err))
		}
		return
	}
	for _, member := range due {
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, retryKey, member)
		pipe.LPush(ctx, q.key(topic, "messages"), member)
		if _, err := pipe.Exec(ctx); err != nil {
			if ctx.Err() == nil {
				q.log.Error("move retry to queue", logger.Error(err))
			}
			return
		}
	}
}

func (q *RedisQueue) key(topic, kind string) string {
	return q.cfg.KeyPrefix + ":" + topic + ":" + kind
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
