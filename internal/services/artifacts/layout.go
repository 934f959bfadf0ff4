// Package artifacts owns the on-disk layout <base>/<model>/model.{pkl,pt}
// plus scaler.pkl and the two persistence strategies.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
)

const (
	ObjectFile  = "model.pkl"
	WeightsFile = "model.pt"
	ScalerFile  = "scaler.pkl"
)

// Dir is the per-family directory under base.
func Dir(base, name string) string { return filepath.Join(base, name) }

// ModelFile returns the model artifact name for a persistence kind.
func ModelFile(p service.Persistence) string {
	if p == service.NetworkWeights {
		return WeightsFile
	}
	return ObjectFile
}

// Paths lists the files a model with the given kind writes.
func Paths(base, name string, p service.Persistence, withScaler bool) models.ArtifactPaths {
	dir := Dir(base, name)
	out := models.ArtifactPaths{Model: filepath.Join(dir, ModelFile(p))}
	if withScaler {
		out.Scaler = filepath.Join(dir, ScalerFile)
	}
	return out
}

// Verify fails with ErrArtifactNotFound unless every listed file exists.
func Verify(p models.ArtifactPaths) error {
	for _, path := range []string{p.Model, p.Scaler} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return domain.ArtifactNotFound("verify artifacts", path)
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return nil
}

func open(op, path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ArtifactNotFound(op, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: open %s: %w", op, path, err)
	}
	return f, nil
}

func create(op, path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%s: mkdir: %w", op, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%s: create %s: %w", op, path, err)
	}
	return f, nil
}
