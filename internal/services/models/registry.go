// Package models holds the model families and the factory that resolves
// them by name. Each family registers itself from an init function.
package models

import (
	"sort"
	"sync"

	"MDK/internal/domain/service"
	"MDK/pkg/logger"
	"MDK/pkg/util"
)

// Registered family names.
const (
	Regression             = "regression"
	RegressionTimeSeries   = "regression_time_series"
	RandomForest           = "random_forest"
	RandomForestTimeSeries = "random_forest_time_series"
	Xgboost                = "xgboost"
	XgboostTimeSeries      = "xgboost_time_series"
	Arima                  = "arima"
	Prophet                = "prophet"
	LSTM                   = "lstm"
)

// Env is what the factory hands every constructor.
type Env struct {
	SaveDir string
	Seed    int64
	Workers int
	Log     *logger.Logger
}

// Constructor builds an untrained instance. overrides are overlaid onto
// the family's defaults; unknown keys are ignored.
type Constructor func(env Env, overrides map[string]interface{}) (service.Model, error)

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[name]; dup {
		panic("models: duplicate registration of " + name)
	}
	registry[name] = ctor
}

func lookup(name string) (Constructor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	ctor, ok := registry[name]
	return ctor, ok
}

// Registered reports whether name has a constructor.
func Registered(name string) bool {
	_, ok := lookup(name)
	return ok
}

// Names lists the registered families in sorted order.
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

// ClassName is the display name of a family: "random_forest" -> "RandomForestModel".
func ClassName(name string) string { return util.SnakeToPascal(name) + "Model" }
