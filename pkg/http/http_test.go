package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type stepsRequest struct {
	ID    string `param:"id" validate:"required"`
	Steps int    `query:"steps" json:"steps" default:"1" validate:"gte=1,lte=10"`
	Name  string `json:"model_name" validate:"required"`
}

func bind(t *testing.T, method, target, body string) (*stepsRequest, interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("exp-1")
	var r stepsRequest
	return &r, ReadAndValidateRequest(c, &r)
}

func TestReadAndValidateBindsQueryOnPost(t *testing.T) {
	r, errs := bind(t, http.MethodPost, "/x/exp-1?steps=4", `{"model_name":"arima"}`)
	if errs != nil {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if r.ID != "exp-1" || r.Steps != 4 || r.Name != "arima" {
		t.Fatalf("bound %+v", r)
	}
}

func TestReadAndValidateDefaults(t *testing.T) {
	r, errs := bind(t, http.MethodPost, "/x/exp-1", `{"model_name":"arima"}`)
	if errs != nil {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if r.Steps != 1 {
		t.Fatalf("steps default = %d", r.Steps)
	}
}

func TestReadAndValidateReportsTagNames(t *testing.T) {
	_, errs := bind(t, http.MethodPost, "/x/exp-1?steps=50", `{}`)
	list, ok := errs.([]ValidationError)
	if !ok || len(list) != 2 {
		t.Fatalf("want 2 validation errors, got %#v", errs)
	}
	byField := map[string]ValidationError{}
	for _, e := range list {
		byField[e.Field] = e
	}
	if e := byField["steps"]; e.Code != "ERR_LTE" || e.Params["max"] != "10" {
		t.Fatalf("steps error %+v", e)
	}
	if e := byField["model_name"]; e.Code != "ERR_REQUIRED" || e.Message != "model_name is required" {
		t.Fatalf("model_name error %+v", e)
	}
}

func TestReadAndValidateBadBody(t *testing.T) {
	_, errs := bind(t, http.MethodPost, "/x/exp-1", `{"steps":"many"}`)
	list, ok := errs.([]ValidationError)
	if !ok || len(list) != 1 || list[0].Code != "ERR_BIND" {
		t.Fatalf("want ERR_BIND, got %#v", errs)
	}
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	wrapped := fmt.Errorf("handler: %w", ConflictError("NotTrainedError", "not trained"))
	if err := AppErrorResponse(c, wrapped); err != nil {
		t.Fatalf("AppErrorResponse: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d", rec.Code)
	}
	var env struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != http.StatusConflict || len(env.Data) != 1 || env.Data[0].Code != "NotTrainedError" {
		t.Fatalf("envelope %+v", env)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = AppErrorResponse(c, errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("plain error status %d", rec.Code)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := InternalError("InternalError", "save failed").WithError(cause).WithParam("path", "/tmp")
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost")
	}
	if err.Error() != "save failed: disk full" || err.Params["path"] != "/tmp" {
		t.Fatalf("got %q %v", err.Error(), err.Params)
	}
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping/:id", func(c echo.Context) error { return SuccessResponse(c, c.Param("id")) })
	e.GET("/panic", func(c echo.Context) error { panic("kaboom") })
}

func TestServerRoutesMetricsAndRecovery(t *testing.T) {
	srv := NewServer([]Handler{pingHandler{}}, WithRegistry(prometheus.NewRegistry()))

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping/a", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"data":"a"`) {
		t.Fatalf("ping: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("panic status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `mdk_http_requests_total{method="GET",route="/ping/:id",status="200"} 1`) {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}
