package api

import (
	"math"
	"time"

	"github.com/labstack/echo/v4"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
	xhttp "MDK/pkg/http"
	"MDK/pkg/logger"
	"MDK/pkg/util"
)

// ModelCatalog lists the registered model families.
type ModelCatalog interface {
	Names() []string
}

// MetricCatalog resolves metrics by name.
type MetricCatalog interface {
	Names() []string
	CreateMetric(name string) (service.Metric, error)
}

// CatalogHandler lists families and metrics and evaluates a metric over a
// posted price series.
type CatalogHandler struct {
	log     *logger.Logger
	models  ModelCatalog
	metrics MetricCatalog
}

func NewCatalogHandler(log *logger.Logger, models ModelCatalog, metrics MetricCatalog) *CatalogHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CatalogHandler{log: log, models: models, metrics: metrics}
}

func (h *CatalogHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/models", h.Models)
	g.GET("/metrics", h.Metrics)
	g.POST("/metrics/:name", h.Calculate)
}

func (h *CatalogHandler) Models(c echo.Context) error {
	names := h.models.Names()
	return xhttp.ListResponse(c, names, int64(len(names)))
}

func (h *CatalogHandler) Metrics(c echo.Context) error {
	names := h.metrics.Names()
	return xhttp.ListResponse(c, names, int64(len(names)))
}

type metricResponse struct {
	Metric string   `json:"metric"`
	Value  *float64 `json:"value"`
	Points int      `json:"points"`
}

func (h *CatalogHandler) Calculate(c echo.Context) error {
	req := &models.MetricRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	m, err := h.metrics.CreateMetric(req.Name)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	series, err := priceSeries(req)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	resp := metricResponse{Metric: m.Name(), Points: len(series.Close)}
	if v := m.Calculate(series); !math.IsNaN(v) && !math.IsInf(v, 0) {
		resp.Value = &v
	}
	return xhttp.SuccessResponse(c, resp)
}

func priceSeries(req *models.MetricRequest) (models.PriceSeries, error) {
	s := models.PriceSeries{Close: req.Prices}
	if len(req.Dates) == 0 {
		return s, nil
	}
	if len(req.Dates) != len(req.Prices) {
		return s, domain.Validation("metric", "got %d dates for %d prices", len(req.Dates), len(req.Prices))
	}
	s.Dates = make([]time.Time, len(req.Dates))
	for i, raw := range req.Dates {
		t, ok := util.ParseTime(raw)
		if !ok {
			return s, domain.Validation("metric", "date %d: cannot parse %q", i, raw)
		}
		s.Dates[i] = t
	}
	return s, nil
}
