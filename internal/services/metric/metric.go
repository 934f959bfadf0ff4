// Package metric computes risk/return statistics over close prices and
// resolves them by snake_case name.
package metric

import (
	"sort"
	"sync"

	"MDK/internal/domain"
	"MDK/internal/domain/service"
	"MDK/pkg/util"
)

const (
	RiskFreeRate    = 0.01
	TradingDays     = 365
	WindowSize      = 5
	ConfidenceLevel = 0.05
)

type Constructor func() service.Metric

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

// Register binds name to ctor. Metric files call it from init.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[name]; dup {
		panic("metric: duplicate registration of " + name)
	}
	registry[name] = ctor
}

// Names lists registered metrics in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ClassName is the display name for a metric: "sharpe_ratio" -> "SharpeRatioMetric".
func ClassName(name string) string { return util.SnakeToPascal(name) + "Metric" }

// Factory creates metrics by name.
type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) CreateMetric(name string) (service.Metric, error) {
	mu.RLock()
	ctor, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, domain.UnknownMetric(name)
	}
	return ctor(), nil
}

func (f *Factory) Names() []string { return Names() }
