package usecase

import (
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"

	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
	"MDK/internal/services/artifacts"
	modelsvc "MDK/internal/services/models"
	"MDK/internal/services/preprocess"
	"MDK/pkg/logger"
)

// TrainingResult is what a training run leaves behind.
type TrainingResult struct {
	ModelName  string               `json:"model_name"`
	Artifacts  models.ArtifactPaths `json:"artifacts"`
	Evaluation *models.Evaluation   `json:"evaluation,omitempty"`
}

// RunTraining cleans data, trains modelName on it and writes the artifacts
// under outputDir/modelName. outputDir is created when absent. Errors keep
// their domain kind: ValidationError for bad data, UnknownModelError for a
// bad name, the family's own failure otherwise, and ArtifactNotFoundError
// if a model reports success without its files on disk.
func RunTraining(factory *modelsvc.Factory, modelName string, data dataframe.DataFrame, outputDir string, overrides map[string]interface{}) (*TrainingResult, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	ds, err := preprocess.Preprocess(data)
	if err != nil {
		return nil, err
	}

	model, err := factory.WithSaveDirOf(outputDir).CreateModel(modelName, overrides)
	if err != nil {
		return nil, err
	}
	if err := model.Train(ds); err != nil {
		return nil, err
	}

	paths := model.Artifacts()
	if err := artifacts.Verify(paths); err != nil {
		return nil, err
	}

	res := &TrainingResult{ModelName: model.Name(), Artifacts: paths}
	if ev, ok := model.(service.Evaluator); ok {
		e := ev.Evaluation()
		res.Evaluation = &e
	}
	return res, nil
}

// Trainer binds RunTraining to a factory and a logger.
type Trainer struct {
	factory *modelsvc.Factory
	log     *logger.Logger
}

func NewTrainer(factory *modelsvc.Factory, log *logger.Logger) *Trainer {
	if log == nil {
		log = logger.Nop()
	}
	return &Trainer{factory: factory, log: log}
}

// Train runs one training job on raw rows.
func (t *Trainer) Train(modelName string, rows []models.Candle, outputDir string, overrides map[string]interface{}) (*TrainingResult, error) {
	t.log.Info("training started",
		logger.String("model", modelName),
		logger.Int("rows", len(rows)),
		logger.String("output_dir", outputDir))

	res, err := RunTraining(t.factory, modelName, preprocess.FromCandles(rows), outputDir, overrides)
	if err != nil {
		t.log.Error("training failed", logger.String("model", modelName), logger.Error(err))
		return nil, err
	}
	t.log.Info("training completed",
		logger.String("model", modelName),
		logger.String("model_artifact", res.Artifacts.Model))
	return res, nil
}

// Factory exposes the factory the trainer builds models with.
func (t *Trainer) Factory() *modelsvc.Factory { return t.factory }
