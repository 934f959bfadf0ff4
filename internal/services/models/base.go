package models

import (
	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
	"MDK/internal/services/artifacts"
	"MDK/pkg/logger"
)

// base carries what every family shares: identity, persistence kind,
// artifact location and the trained/loaded flag.
type base struct {
	name        string
	persistence service.Persistence
	withScaler  bool
	saveDir     string
	log         *logger.Logger
	ready       bool
	eval        models.Evaluation
}

func newBase(name string, p service.Persistence, withScaler bool, env Env) base {
	log := env.Log
	if log == nil {
		log = logger.Nop()
	}
	dir := env.SaveDir
	if dir == "" {
		dir = DefaultSaveDir
	}
	return base{name: name, persistence: p, withScaler: withScaler, saveDir: dir, log: log}
}

func (b *base) Name() string { return b.name }
func (b *base) Persistence() service.Persistence { return b.persistence }
func (b *base) SaveDir() string { return b.saveDir }
func (b *base) SetSaveDir(dir string) { b.saveDir = dir }
func (b *base) Evaluation() models.Evaluation { return b.eval }

func (b *base) Artifacts() models.ArtifactPaths {
	return artifacts.Paths(b.saveDir, b.name, b.persistence, b.withScaler)
}

func (b *base) op(action string) string { return b.name + "." + action }

func (b *base) requireReady(action string) error {
	if !b.ready {
		return domain.NotTrained(b.op(action))
	}
	return nil
}

func (b *base) checkSteps(steps int) error {
	if steps < 1 {
		return domain.Validation(b.op("forecast"), "steps must be positive, got %d", steps)
	}
	return nil
}

// verify returns ArtifactNotFound for any expected file that is missing.
func (b *base) verify() (models.ArtifactPaths, error) {
	paths := b.Artifacts()
	return paths, artifacts.Verify(paths)
}
