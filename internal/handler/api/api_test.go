package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	domrepo "MDK/internal/domain/repository"
	"MDK/internal/services/metric"
	modelsvc "MDK/internal/services/models"
	"MDK/internal/usecase"
	xhttp "MDK/pkg/http"
)

type fakeExperiments struct {
	createErr error
	created   *models.CreateExperimentRequest
	records   map[string]*models.Experiment
}

func (f *fakeExperiments) Create(_ context.Context, req *models.CreateExperimentRequest) (*models.Experiment, error) {
	f.created = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Experiment{ID: "exp-1", ModelName: req.ModelName, Status: models.StatusPending}, nil
}

func (f *fakeExperiments) Get(_ context.Context, id string) (*models.Experiment, error) {
	if e, ok := f.records[id]; ok {
		return e, nil
	}
	return nil, domrepo.ErrExperimentNotFound
}

type fakePredictor struct {
	err   error
	steps int
	rows  int
}

func (f *fakePredictor) Inference(_ context.Context, _ string, rows []models.Candle) (*models.Predictions, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rows = len(rows)
	p := models.NewPredictions([]int{0, 1}, nil)
	p.Values[1] = 2.5
	return p, nil
}

func (f *fakePredictor) Forecast(_ context.Context, _ string, steps int, rows []models.Candle) (*models.Forecast, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.steps, f.rows = steps, len(rows)
	return models.UnsupportedForecast(steps), nil
}

func (f *fakePredictor) PredictNext(_ context.Context, id string) (*usecase.NextPrediction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.NextPrediction{ExperimentID: id, ModelName: "arima", Value: 101.5, Source: usecase.SourceForecast, Rows: 100}, nil
}

func (f *fakePredictor) CachedModels() []string { return []string{"exp-1"} }

type denyAll struct{ keys []string }

func (d *denyAll) Allow(key string) bool {
	d.keys = append(d.keys, key)
	return false
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type testAPI struct {
	srv         *xhttp.Server
	experiments *fakeExperiments
	predictor   *fakePredictor
}

func newTestAPI(t *testing.T, limiter RateLimiter) *testAPI {
	t.Helper()
	a := &testAPI{
		experiments: &fakeExperiments{records: map[string]*models.Experiment{
			"exp-1": {ID: "exp-1", ModelName: "regression", Status: models.StatusCompleted, CreatedAt: time.Unix(0, 0).UTC()},
		}},
		predictor: &fakePredictor{},
	}
	handlers := []xhttp.Handler{
		NewExperimentHandler(nil, a.experiments, a.predictor, limiter),
		NewCatalogHandler(nil, modelsvc.NewFactory(), metric.NewFactory()),
	}
	a.srv = xhttp.NewServer(handlers, xhttp.WithRegistry(prometheus.NewRegistry()))
	return a
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.srv.Echo().ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func errorCode(t *testing.T, env envelope) string {
	t.Helper()
	var errs []struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(env.Data, &errs); err != nil || len(errs) == 0 {
		t.Fatalf("expected error list, got %s", env.Data)
	}
	return errs[0].Code
}

func TestCreateExperimentAccepted(t *testing.T) {
	a := newTestAPI(t, nil)
	code, env := a.do(t, http.MethodPost, "/api/v1/experiments", `{"model_name":"regression","symbol":"BTCUSDT","user_id":"u1"}`)
	if code != http.StatusAccepted || env.Status != http.StatusAccepted {
		t.Fatalf("status %d / %d", code, env.Status)
	}
	var exp models.Experiment
	if err := json.Unmarshal(env.Data, &exp); err != nil {
		t.Fatalf("decode experiment: %v", err)
	}
	if exp.ID != "exp-1" || exp.Status != models.StatusPending {
		t.Fatalf("unexpected experiment %+v", exp)
	}
	if a.experiments.created.Symbol != "BTCUSDT" {
		t.Fatalf("symbol not bound: %+v", a.experiments.created)
	}
}

func TestCreateExperimentValidation(t *testing.T) {
	a := newTestAPI(t, nil)
	code, env := a.do(t, http.MethodPost, "/api/v1/experiments", `{"symbol":"BTCUSDT"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", code)
	}
	if got := errorCode(t, env); got != "ERR_REQUIRED" {
		t.Fatalf("want ERR_REQUIRED, got %s", got)
	}

	code, env = a.do(t, http.MethodPost, "/api/v1/experiments", `{"model_name":"regression"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("want 400 without dataset, got %d", code)
	}
	if got := errorCode(t, env); got != "ERR_REQUIRED_WITHOUT" {
		t.Fatalf("want ERR_REQUIRED_WITHOUT, got %s", got)
	}
}

func TestCreateExperimentUnknownModel(t *testing.T) {
	a := newTestAPI(t, nil)
	a.experiments.createErr = domain.UnknownModel("gpt")
	code, env := a.do(t, http.MethodPost, "/api/v1/experiments", `{"model_name":"gpt","symbol":"X"}`)
	if code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", code)
	}
	if got := errorCode(t, env); got != "UnknownModelError" {
		t.Fatalf("want UnknownModelError, got %s", got)
	}
}

func TestCreateExperimentRateLimited(t *testing.T) {
	limiter := &denyAll{}
	a := newTestAPI(t, limiter)
	code, _ := a.do(t, http.MethodPost, "/api/v1/experiments", `{"model_name":"regression","symbol":"X","project_id":"p9"}`)
	if code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", code)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "project:p9" {
		t.Fatalf("unexpected limiter keys %v", limiter.keys)
	}
	if a.experiments.created != nil {
		t.Fatalf("limited request reached the service")
	}
}

func TestGetExperiment(t *testing.T) {
	a := newTestAPI(t, nil)
	code, _ := a.do(t, http.MethodGet, "/api/v1/experiments/exp-1", "")
	if code != http.StatusOK {
		t.Fatalf("want 200, got %d", code)
	}
	code, env := a.do(t, http.MethodGet, "/api/v1/experiments/ghost", "")
	if code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", code)
	}
	if got := errorCode(t, env); got != "ExperimentNotFound" {
		t.Fatalf("want ExperimentNotFound, got %s", got)
	}
}

func TestForecastBindsSteps(t *testing.T) {
	a := newTestAPI(t, nil)
	code, env := a.do(t, http.MethodGet, "/api/v1/experiments/exp-1/forecast?steps=3", "")
	if code != http.StatusOK || a.predictor.steps != 3 {
		t.Fatalf("status %d steps %d", code, a.predictor.steps)
	}
	var body struct {
		Steps    int `json:"steps"`
		Forecast struct {
			Supported bool `json:"supported"`
			Rows      []struct {
				Forecast interface{} `json:"forecast"`
			} `json:"rows"`
		} `json:"forecast"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Forecast.Supported || len(body.Forecast.Rows) != 3 || body.Forecast.Rows[0].Forecast != models.UnsupportedMarker {
		t.Fatalf("unexpected forecast %+v", body)
	}

	code, _ = a.do(t, http.MethodPost, "/api/v1/experiments/exp-1/forecast?steps=2", `{"rows":[{"open":1,"high":1,"low":1,"close":1,"volume":1}]}`)
	if code != http.StatusOK || a.predictor.steps != 2 || a.predictor.rows != 1 {
		t.Fatalf("status %d steps %d rows %d", code, a.predictor.steps, a.predictor.rows)
	}

	code, _ = a.do(t, http.MethodGet, "/api/v1/experiments/exp-1/forecast", "")
	if code != http.StatusOK || a.predictor.steps != 1 {
		t.Fatalf("default steps: status %d steps %d", code, a.predictor.steps)
	}

	code, _ = a.do(t, http.MethodGet, "/api/v1/experiments/exp-1/forecast?steps=5000", "")
	if code != http.StatusBadRequest {
		t.Fatalf("want 400 for steps=5000, got %d", code)
	}
}

func TestInferenceErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{domain.NotTrained("predictor"), http.StatusConflict, "NotTrainedError"},
		{domain.InsufficientData("lstm.inference", 61, 10), http.StatusUnprocessableEntity, "InsufficientDataError"},
		{domain.ArtifactNotFound("lstm.load", "model.pt"), http.StatusNotFound, "ArtifactNotFoundError"},
		{domain.Validation("preprocess", "missing close"), http.StatusBadRequest, "ValidationError"},
	}
	body := `{"rows":[{"open":1,"high":1,"low":1,"close":1,"volume":1}]}`
	for _, tc := range cases {
		a := newTestAPI(t, nil)
		a.predictor.err = tc.err
		code, env := a.do(t, http.MethodPost, "/api/v1/experiments/exp-1/inference", body)
		if code != tc.want {
			t.Fatalf("%v: want %d, got %d", tc.err, tc.want, code)
		}
		if got := errorCode(t, env); got != tc.code {
			t.Fatalf("%v: want code %s, got %s", tc.err, tc.code, got)
		}
	}
}

func TestInferenceRendersMissingAsNull(t *testing.T) {
	a := newTestAPI(t, nil)
	code, env := a.do(t, http.MethodPost, "/api/v1/experiments/exp-1/inference", `{"rows":[{"open":1,"high":1,"low":1,"close":1,"volume":1},{"open":2,"high":2,"low":2,"close":2,"volume":2}]}`)
	if code != http.StatusOK {
		t.Fatalf("want 200, got %d", code)
	}
	var body struct {
		Predictions []struct {
			Index      int      `json:"index"`
			Prediction *float64 `json:"prediction"`
		} `json:"predictions"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Predictions) != 2 || body.Predictions[0].Prediction != nil || *body.Predictions[1].Prediction != 2.5 {
		t.Fatalf("unexpected predictions %s", env.Data)
	}

	code, _ = a.do(t, http.MethodPost, "/api/v1/experiments/exp-1/inference", `{"rows":[]}`)
	if code != http.StatusBadRequest {
		t.Fatalf("want 400 for empty rows, got %d", code)
	}
}

func TestPredictNextAndHealth(t *testing.T) {
	a := newTestAPI(t, nil)
	code, env := a.do(t, http.MethodGet, "/api/v1/predict/exp-1", "")
	if code != http.StatusOK {
		t.Fatalf("want 200, got %d", code)
	}
	var next usecase.NextPrediction
	if err := json.Unmarshal(env.Data, &next); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if next.Value != 101.5 || next.Source != usecase.SourceForecast {
		t.Fatalf("unexpected prediction %+v", next)
	}

	code, env = a.do(t, http.MethodGet, "/health", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), "exp-1") {
		t.Fatalf("health: %d %s", code, env.Data)
	}
}

func TestCatalog(t *testing.T) {
	a := newTestAPI(t, nil)
	code, env := a.do(t, http.MethodGet, "/api/v1/models", "")
	if code != http.StatusOK {
		t.Fatalf("want 200, got %d", code)
	}
	var list struct {
		Rows  []string `json:"rows"`
		Total int64    `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 9 || int(list.Total) != len(list.Rows) {
		t.Fatalf("unexpected model list %+v", list)
	}

	code, env = a.do(t, http.MethodGet, "/api/v1/metrics", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), "sharpe_ratio") {
		t.Fatalf("metrics list: %d %s", code, env.Data)
	}
}

func TestCalculateMetric(t *testing.T) {
	a := newTestAPI(t, nil)
	code, env := a.do(t, http.MethodPost, "/api/v1/metrics/maximum_drawdown", `{"prices":[100,120,90,110]}`)
	if code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", code, env.Data)
	}
	var res struct {
		Metric string   `json:"metric"`
		Value  *float64 `json:"value"`
		Points int      `json:"points"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Value == nil || *res.Value != -0.25 || res.Points != 4 {
		t.Fatalf("unexpected result %+v", res)
	}

	code, env = a.do(t, http.MethodPost, "/api/v1/metrics/magic", `{"prices":[1,2]}`)
	if code != http.StatusNotFound || errorCode(t, env) != "UnknownMetricError" {
		t.Fatalf("unknown metric: %d %s", code, env.Data)
	}

	code, _ = a.do(t, http.MethodPost, "/api/v1/metrics/cagr", `{"prices":[1,2],"dates":["2024-01-01"]}`)
	if code != http.StatusBadRequest {
		t.Fatalf("mismatched dates: want 400, got %d", code)
	}

	code, env = a.do(t, http.MethodPost, "/api/v1/metrics/cagr", `{"prices":[100,110],"dates":["2024-01-01","2025-01-01"]}`)
	if code != http.StatusOK {
		t.Fatalf("cagr: want 200, got %d", code)
	}
	if err := json.Unmarshal(env.Data, &res); err != nil || res.Value == nil {
		t.Fatalf("cagr value missing: %s", env.Data)
	}
}
