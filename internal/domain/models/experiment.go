package models

import "time"

type ExperimentStatus string

const (
	StatusPending   ExperimentStatus = "pending"
	StatusRunning   ExperimentStatus = "running"
	StatusCompleted ExperimentStatus = "completed"
	StatusFailed    ExperimentStatus = "failed"
)

// DatasetRef says where training rows come from: inline rows, or a symbol
// range resolved against the candle store.
type DatasetRef struct {
	Symbol string    `json:"symbol,omitempty"`
	From   time.Time `json:"from,omitempty"`
	To     time.Time `json:"to,omitempty"`
	Rows   []Candle  `json:"rows,omitempty"`
}

// Experiment is one training run and, once completed, a servable model.
type Experiment struct {
	ID          string                 `json:"id"`
	ProjectID   string                 `json:"project_id,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	ModelName   string                 `json:"model_name"`
	ModelConfig map[string]interface{} `json:"model_config,omitempty"`
	Dataset     DatasetRef             `json:"dataset"`
	Status      ExperimentStatus       `json:"status"`
	ErrorKind   string                 `json:"error_kind,omitempty"`
	Error       string                 `json:"error,omitempty"`
	ArtifactDir string                 `json:"artifact_dir,omitempty"`
	Artifacts   *ArtifactPaths         `json:"artifacts,omitempty"`
	Evaluation  *Evaluation            `json:"evaluation,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// TrainingJob is the message handed to a training worker.
type TrainingJob struct {
	ExperimentID string    `json:"experiment_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// ExperimentEvent is published on every status transition.
type ExperimentEvent struct {
	ExperimentID string           `json:"experiment_id"`
	ModelName    string           `json:"model_name"`
	Status       ExperimentStatus `json:"status"`
	ErrorKind    string           `json:"error_kind,omitempty"`
	Error        string           `json:"error,omitempty"`
	Artifacts    *ArtifactPaths   `json:"artifacts,omitempty"`
	At           time.Time        `json:"at"`
}
