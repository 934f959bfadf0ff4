package api

import (
	"errors"

	"MDK/internal/domain"
	domrepo "MDK/internal/domain/repository"
	xhttp "MDK/pkg/http"
)

// toAppError maps the domain taxonomy onto HTTP statuses. The taxonomy name
// doubles as the error code so clients see the same kind the experiment
// record carries.
func toAppError(err error) *xhttp.AppError {
	code := domain.KindName(err)
	switch {
	case errors.Is(err, domrepo.ErrExperimentNotFound):
		return xhttp.NotFoundError("ExperimentNotFound", err.Error()).WithError(err)
	case errors.Is(err, domain.ErrValidation):
		return xhttp.BadRequestError(code, err.Error()).WithError(err)
	case errors.Is(err, domain.ErrUnknownModel),
		errors.Is(err, domain.ErrUnknownMetric),
		errors.Is(err, domain.ErrArtifactNotFound):
		return xhttp.NotFoundError(code, err.Error()).WithError(err)
	case errors.Is(err, domain.ErrNotTrained):
		return xhttp.ConflictError(code, err.Error()).WithError(err)
	case errors.Is(err, domain.ErrInsufficientData):
		return xhttp.UnprocessableError(code, err.Error()).WithError(err)
	case errors.Is(err, domain.ErrTraining):
		return xhttp.InternalError(code, err.Error()).WithError(err)
	}
	return xhttp.InternalError("InternalError", "internal error").WithError(err)
}
