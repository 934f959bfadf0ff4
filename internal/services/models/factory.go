package models

import (
	"MDK/internal/domain"
	"MDK/internal/domain/service"
	"MDK/internal/services/features"
	"MDK/pkg/logger"
)

const (
	DefaultSeed    = 42
	DefaultSaveDir = "trained_models"
)

// Factory creates model instances by name.
type Factory struct {
	env    Env
	legacy bool
}

type Option func(*Factory)

func WithSeed(seed int64) Option { return func(f *Factory) { f.env.Seed = seed } }

func WithSaveDir(dir string) Option { return func(f *Factory) { f.env.SaveDir = dir } }

func WithLogger(l *logger.Logger) Option { return func(f *Factory) { f.env.Log = l } }

// WithWorkers bounds the goroutines used by parallel fits.
func WithWorkers(n int) Option { return func(f *Factory) { f.env.Workers = n } }

// WithLegacyGlobalSeed also reseeds the process-wide generator with the
// factory seed whenever a factory is constructed.
func WithLegacyGlobalSeed(on bool) Option { return func(f *Factory) { f.legacy = on } }

func NewFactory(opts ...Option) *Factory {
	f := &Factory{env: Env{SaveDir: DefaultSaveDir, Seed: DefaultSeed}}
	for _, opt := range opts {
		opt(f)
	}
	if f.env.Log == nil {
		f.env.Log = logger.Nop()
	}
	if f.legacy {
		features.SetSeed(f.env.Seed)
	}
	return f
}

// CreateModel returns a fresh instance of the named family with overrides
// applied to a new default configuration.
func (f *Factory) CreateModel(name string, overrides map[string]interface{}) (service.Model, error) {
	ctor, ok := lookup(name)
	if !ok {
		return nil, domain.UnknownModel(name)
	}
	env := f.env
	env.Log = f.env.Log.With(logger.String("model", name))
	return ctor(env, overrides)
}

// WithSaveDirOf returns a copy of the factory writing under dir.
func (f *Factory) WithSaveDirOf(dir string) *Factory {
	c := *f
	c.env.SaveDir = dir
	return &c
}

func (f *Factory) Names() []string { return Names() }

func (f *Factory) Seed() int64 { return f.env.Seed }
