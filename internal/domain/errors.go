package domain

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every error raised by the core wraps exactly one of them.
var (
	ErrValidation       = errors.New("validation error")
	ErrUnknownModel     = errors.New("unknown model")
	ErrUnknownMetric    = errors.New("unknown metric")
	ErrNotTrained       = errors.New("model not trained")
	ErrInsufficientData = errors.New("insufficient data")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrTraining         = errors.New("training failure")
)

var kindNames = map[error]string{
	ErrValidation:       "ValidationError",
	ErrUnknownModel:     "UnknownModelError",
	ErrUnknownMetric:    "UnknownMetricError",
	ErrNotTrained:       "NotTrainedError",
	ErrInsufficientData: "InsufficientDataError",
	ErrArtifactNotFound: "ArtifactNotFoundError",
	ErrTraining:         "TrainingFailure",
}

// Error is a classified failure. Op names the operation ("arima.train").
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...interface{}) error {
	return newError(ErrValidation, op, format, args...)
}

func UnknownModel(name string) error {
	return newError(ErrUnknownModel, "factory", "no model registered under %q", name)
}

func UnknownMetric(name string) error {
	return newError(ErrUnknownMetric, "metric factory", "no metric registered under %q", name)
}

func NotTrained(op string) error {
	return newError(ErrNotTrained, op, "call train or load first")
}

func InsufficientData(op string, need, got int) error {
	return newError(ErrInsufficientData, op, "need at least %d rows, got %d", need, got)
}

func ArtifactNotFound(op, path string) error {
	return newError(ErrArtifactNotFound, op, "missing %s", path)
}

// TrainingFailure wraps a numerical fit error. Errors that already carry a
// kind pass through unchanged.
func TrainingFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindName(err) != "" {
		return err
	}
	return &Error{Kind: ErrTraining, Op: op, Msg: "fit failed", Err: err}
}

// KindName returns the taxonomy name of err, or "" for unclassified errors.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	for kind, name := range kindNames {
		if errors.Is(err, kind) {
			return name
		}
	}
	return ""
}
