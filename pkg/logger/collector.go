package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// Publisher ships digests somewhere durable (Kafka in the app).
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	FlushInterval  time.Duration
	CountThreshold int // unique entries before an early flush
	Topic          string
	Publisher      Publisher
}

// Digest is one deduplicated warn/error line with its occurrence count.
type Digest struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds repeated warn/error entries (for example the same
// training failure across retries) into digests and publishes them in batches.
type LogCollector struct {
	cfg     CollectionConfig
	mu      sync.Mutex
	entries map[string]*Digest
	flushCh chan []Digest
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewLogCollector(cfg CollectionConfig) *LogCollector {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		cfg:     cfg,
		entries: make(map[string]*Digest),
		flushCh: make(chan []Digest, 4),
		cancel:  cancel,
	}
	c.wg.Add(2)
	go c.ticker(ctx)
	go c.sender()
	return c
}

func (c *LogCollector) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := digestKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.entries[key]; ok {
		d.Count++
		d.LastSeen = now
	} else {
		c.entries[key] = &Digest{
			Level: level, Message: message, Fields: fields, Caller: caller,
			Count: 1, FirstSeen: now, LastSeen: now,
		}
	}
	if len(c.entries) >= c.cfg.CountThreshold {
		c.drainLocked()
	}
}

// Pending reports how many unique entries wait for the next flush.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *LogCollector) ticker(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.FlushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.mu.Lock()
			c.drainLocked()
			c.mu.Unlock()
		case <-ctx.Done():
			c.mu.Lock()
			c.drainLocked()
			c.closed = true
			close(c.flushCh)
			c.mu.Unlock()
			return
		}
	}
}

func (c *LogCollector) sender() {
	defer c.wg.Done()
	for batch := range c.flushCh {
		if c.cfg.Publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_ = c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch)
		cancel()
	}
}

func (c *LogCollector) drainLocked() {
	if c.closed || len(c.entries) == 0 {
		return
	}
	batch := make([]Digest, 0, len(c.entries))
	for _, d := range c.entries {
		batch = append(batch, *d)
	}
	c.entries = make(map[string]*Digest)
	select {
	case c.flushCh <- batch:
	default:
		// sender is behind; drop rather than block the logging call site
	}
}

func digestKey(level, message string, fields map[string]interface{}, caller string) string {
	b, _ := json.Marshal(struct {
		L string                 `json:"l"`
		M string                 `json:"m"`
		F map[string]interface{} `json:"f"`
		C string                 `json:"c"`
	}{level, message, fields, caller})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
