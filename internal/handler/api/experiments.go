package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"MDK/internal/domain/models"
	"MDK/internal/usecase"
	xhttp "MDK/pkg/http"
	"MDK/pkg/logger"
)

// ExperimentService is the training intake the handler drives.
type ExperimentService interface {
	Create(ctx context.Context, req *models.CreateExperimentRequest) (*models.Experiment, error)
	Get(ctx context.Context, id string) (*models.Experiment, error)
}

// Predictor serves completed experiments.
type Predictor interface {
	Inference(ctx context.Context, id string, rows []models.Candle) (*models.Predictions, error)
	Forecast(ctx context.Context, id string, steps int, rows []models.Candle) (*models.Forecast, error)
	PredictNext(ctx context.Context, id string) (*usecase.NextPrediction, error)
	CachedModels() []string
}

// RateLimiter guards training submissions per caller.
type RateLimiter interface {
	Allow(key string) bool
}

var (
	_ ExperimentService = (*usecase.ExperimentService)(nil)
	_ Predictor         = (*usecase.Predictor)(nil)
)

// ExperimentHandler exposes training intake and model serving.
type ExperimentHandler struct {
	log         *logger.Logger
	experiments ExperimentService
	predictor   Predictor
	limiter     RateLimiter
}

func NewExperimentHandler(log *logger.Logger, experiments ExperimentService, predictor Predictor, limiter RateLimiter) *ExperimentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ExperimentHandler{log: log, experiments: experiments, predictor: predictor, limiter: limiter}
}

func (h *ExperimentHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api/v1")
	g.POST("/experiments", h.Create)
	g.GET("/experiments/:id", h.Get)
	g.POST("/experiments/:id/inference", h.Inference)
	g.GET("/experiments/:id/forecast", h.Forecast)
	g.POST("/experiments/:id/forecast", h.Forecast)
	g.GET("/predict/:id", h.PredictNext)
}

type healthResponse struct {
	Status       string   `json:"status"`
	CachedModels []string `json:"cached_models"`
}

func (h *ExperimentHandler) Health(c echo.Context) error {
	cached := h.predictor.CachedModels()
	if cached == nil {
		cached = []string{}
	}
	return xhttp.SuccessResponse(c, healthResponse{Status: "ok", CachedModels: cached})
}

func (h *ExperimentHandler) Create(c echo.Context) error {
	req := &models.CreateExperimentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.limiter != nil && !h.limiter.Allow(callerKey(req, c)) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many training submissions"))
	}

	exp, err := h.experiments.Create(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "create experiment", err)
	}
	return xhttp.AcceptedResponse(c, exp)
}

// callerKey buckets submissions by user, then project, then client address.
func callerKey(req *models.CreateExperimentRequest, c echo.Context) string {
	switch {
	case req.UserID != "":
		return "user:" + req.UserID
	case req.ProjectID != "":
		return "project:" + req.ProjectID
	}
	return "ip:" + c.RealIP()
}

func (h *ExperimentHandler) Get(c echo.Context) error {
	exp, err := h.experiments.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get experiment", err)
	}
	return xhttp.SuccessResponse(c, exp)
}

type inferenceResponse struct {
	ExperimentID string              `json:"experiment_id"`
	Predictions  *models.Predictions `json:"predictions"`
}

func (h *ExperimentHandler) Inference(c echo.Context) error {
	req := &models.InferenceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	preds, err := h.predictor.Inference(c.Request().Context(), req.ID, req.Rows)
	if err != nil {
		return h.fail(c, "inference", err)
	}
	return xhttp.SuccessResponse(c, inferenceResponse{ExperimentID: req.ID, Predictions: preds})
}

type forecastResponse struct {
	ExperimentID string           `json:"experiment_id"`
	Steps        int              `json:"steps"`
	Forecast     *models.Forecast `json:"forecast"`
}

func (h *ExperimentHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	fc, err := h.predictor.Forecast(c.Request().Context(), req.ID, req.Steps, req.Rows)
	if err != nil {
		return h.fail(c, "forecast", err)
	}
	return xhttp.SuccessResponse(c, forecastResponse{ExperimentID: req.ID, Steps: req.Steps, Forecast: fc})
}

func (h *ExperimentHandler) PredictNext(c echo.Context) error {
	next, err := h.predictor.PredictNext(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "predict next", err)
	}
	return xhttp.SuccessResponse(c, next)
}

func (h *ExperimentHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.log.Error(op+" failed", logger.String("path", c.Path()), logger.Error(err))
	} else {
		h.log.Debug(op+" rejected", logger.String("code", appErr.Code), logger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
