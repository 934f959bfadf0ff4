package service

import "MDK/internal/domain/models"

// Persistence discriminates the two artifact strategies.
type Persistence string

const (
	// NativeObject serialises the whole fitted estimator to model.pkl.
	NativeObject Persistence = "native-object"
	// NetworkWeights serialises only parameter tensors to model.pt. The
	// receiving instance must rebuild the same architecture before loading.
	NetworkWeights Persistence = "network-weights"
)

// Model is the contract every model family implements.
//
// Lifecycle: constructed (config bound) -> Train -> trained, or
// constructed -> Load -> loaded. Inference and Forecast fail with
// domain.ErrNotTrained before either. Instances are not safe for
// concurrent Train calls.
type Model interface {
	Name() string
	Persistence() Persistence

	// Train fits on a cleaned dataset and persists artifacts before returning.
	Train(data *models.Dataset) error
	// Inference returns one prediction per eligible input row.
	Inference(input *models.Dataset) (*models.Predictions, error)
	// Forecast predicts steps future values. history is only consulted by
	// families whose state lives in the recent window (LSTM).
	Forecast(steps int, history *models.Dataset) (*models.Forecast, error)

	Save() error
	Load() error

	// SaveDir is the base directory; artifacts live in SaveDir()/Name().
	SaveDir() string
	SetSaveDir(dir string)
	Artifacts() models.ArtifactPaths
}

// Evaluator is implemented by models that keep a report of their last fit.
type Evaluator interface {
	Evaluation() models.Evaluation
}
