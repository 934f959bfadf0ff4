package usecase

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	domrepo "MDK/internal/domain/repository"
	"MDK/internal/repository"
	"MDK/internal/service/cache"
	modelsvc "MDK/internal/services/models"
	"MDK/internal/services/preprocess"
	pkgcache "MDK/pkg/cache"
	pkgkafka "MDK/pkg/kafka"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func linearRows(n int, seed int64) []models.Candle {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]models.Candle, n)
	for i := range rows {
		open := 100 + rng.Float64()*10
		high := open + rng.Float64()*2
		low := open - rng.Float64()*2
		volume := 1000 + rng.Float64()*500
		rows[i] = models.Candle{
			Date: day0.AddDate(0, 0, i), Open: open, High: high, Low: low, Volume: volume,
			Close: 2*open - high + low + 0.01*volume,
		}
	}
	return rows
}

func trendingRows(n int, seed int64) []models.Candle {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]models.Candle, n)
	price := 100.0
	for i := range rows {
		price += 0.5 + rng.Float64()
		rows[i] = models.Candle{Date: day0.AddDate(0, 0, i), Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1000}
	}
	return rows
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.ExperimentEvent
}

func (r *recordingEvents) PublishEvent(_ context.Context, ev *models.ExperimentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

func (r *recordingEvents) Close() error { return nil }

func (r *recordingEvents) statuses(id string) []models.ExperimentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ExperimentStatus
	for _, ev := range r.events {
		if ev.ExperimentID == id {
			out = append(out, ev.Status)
		}
	}
	return out
}

type harness struct {
	store      *repository.ExperimentStore
	kv         *pkgcache.MemoryCache
	events     *recordingEvents
	runner     *TrainingRunner
	dispatcher *InProcessDispatcher
	svc        *ExperimentService
	predictor  *Predictor
	artifacts  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{events: &recordingEvents{}, artifacts: t.TempDir()}
	h.kv = pkgcache.NewMemoryCache()
	t.Cleanup(func() { h.kv.Close() })
	h.store = repository.NewExperimentStore(h.kv, "mdk:experiment:", 0)

	factory := modelsvc.NewFactory()
	h.runner = NewTrainingRunner("mdk.training.jobs", h.artifacts, RunnerDeps{
		Trainer: NewTrainer(factory, nil),
		Store:   h.store,
		Events:  h.events,
		Locker:  h.kv,
	})
	h.dispatcher = NewInProcessDispatcher(h.runner, 2, nil)
	h.svc = NewExperimentService(h.store, h.dispatcher, h.events, h.runner.metrics, nil)
	h.predictor = NewPredictor(h.store, nil, factory, cache.NewModelCache(time.Minute))
	return h
}

func (h *harness) train(t *testing.T, req *models.CreateExperimentRequest) *models.Experiment {
	t.Helper()
	exp, err := h.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h.dispatcher.Wait()
	got, err := h.svc.Get(context.Background(), exp.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return got
}

func TestRunTrainingRegression(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	df := preprocess.FromCandles(linearRows(100, 1))

	res, err := RunTraining(modelsvc.NewFactory(), "regression", df, dir, nil)
	if err != nil {
		t.Fatalf("RunTraining: %v", err)
	}
	want := filepath.Join(dir, "regression", "model.pkl")
	if res.Artifacts.Model != want {
		t.Fatalf("model artifact = %s, want %s", res.Artifacts.Model, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if res.Artifacts.Scaler == "" {
		t.Fatalf("regression should report a scaler artifact")
	}
	if res.Evaluation == nil || res.Evaluation.R2 <= 0.99 {
		t.Fatalf("evaluation = %+v", res.Evaluation)
	}
}

func TestRunTrainingErrors(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")
	df := preprocess.FromCandles(linearRows(30, 2))

	_, err := RunTraining(modelsvc.NewFactory(), "does_not_exist", df, dir, nil)
	if !errors.Is(err, domain.ErrUnknownModel) {
		t.Fatalf("unknown model err = %v", err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}

	bad := dataframe.New(series.New([]float64{1, 2}, series.Float, "close"))
	if _, err := RunTraining(modelsvc.NewFactory(), "regression", bad, dir, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing columns err = %v", err)
	}
}

func TestExperimentCompletes(t *testing.T) {
	h := newHarness(t)
	exp := h.train(t, &models.CreateExperimentRequest{ModelName: "regression", Rows: linearRows(100, 3)})

	if exp.Status != models.StatusCompleted {
		t.Fatalf("status = %s (%s: %s)", exp.Status, exp.ErrorKind, exp.Error)
	}
	want := filepath.Join(h.artifacts, exp.ID, "regression", "model.pkl")
	if exp.Artifacts == nil || exp.Artifacts.Model != want {
		t.Fatalf("artifacts = %+v, want model %s", exp.Artifacts, want)
	}
	if exp.Evaluation == nil || exp.Evaluation.R2 <= 0.99 {
		t.Fatalf("evaluation = %+v", exp.Evaluation)
	}

	got := h.events.statuses(exp.ID)
	want2 := []models.ExperimentStatus{models.StatusPending, models.StatusRunning, models.StatusCompleted}
	if len(got) != len(want2) {
		t.Fatalf("events = %v, want %v", got, want2)
	}
	for i := range want2 {
		if got[i] != want2[i] {
			t.Fatalf("events = %v, want %v", got, want2)
		}
	}
}

func TestExperimentRecordsFailureKind(t *testing.T) {
	h := newHarness(t)
	exp := h.train(t, &models.CreateExperimentRequest{ModelName: "lstm", Rows: linearRows(10, 4)})

	if exp.Status != models.StatusFailed {
		t.Fatalf("status = %s", exp.Status)
	}
	if exp.ErrorKind != "InsufficientDataError" || exp.Error == "" {
		t.Fatalf("error = %s: %s", exp.ErrorKind, exp.Error)
	}
	st := h.events.statuses(exp.ID)
	if st[len(st)-1] != models.StatusFailed {
		t.Fatalf("last event = %s", st[len(st)-1])
	}
}

func TestExperimentCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.Create(ctx, &models.CreateExperimentRequest{ModelName: "nope", Symbol: "BTC"}); !errors.Is(err, domain.ErrUnknownModel) {
		t.Fatalf("unknown model err = %v", err)
	}
	if _, err := h.svc.Create(ctx, &models.CreateExperimentRequest{ModelName: "arima"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("no dataset err = %v", err)
	}
	_, err := h.svc.Create(ctx, &models.CreateExperimentRequest{ModelName: "arima", Symbol: "BTC", From: "2024-02-01", To: "2024-01-01"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("inverted range err = %v", err)
	}
}

func TestSymbolWithoutSourceFails(t *testing.T) {
	h := newHarness(t)
	exp := h.train(t, &models.CreateExperimentRequest{ModelName: "arima", Symbol: "BTCUSDT"})
	if exp.Status != models.StatusFailed || exp.ErrorKind != "ValidationError" {
		t.Fatalf("got %s %s: %s", exp.Status, exp.ErrorKind, exp.Error)
	}
}

func TestRunnerHandle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.runner.Handle(ctx, []byte("{not json")); !pkgkafka.IsPermanent(err) {
		t.Fatalf("bad payload err = %v", err)
	}
	if err := h.runner.Handle(ctx, []byte(`{"experiment_id":"missing"}`)); !pkgkafka.IsPermanent(err) {
		t.Fatalf("unknown experiment err = %v", err)
	}

	exp := h.train(t, &models.CreateExperimentRequest{ModelName: "regression", Rows: linearRows(60, 5)})
	before := len(h.events.statuses(exp.ID))
	if err := h.runner.Handle(ctx, []byte(`{"experiment_id":"`+exp.ID+`"}`)); err != nil {
		t.Fatalf("redelivery err = %v", err)
	}
	if after := len(h.events.statuses(exp.ID)); after != before {
		t.Fatalf("finished experiment was retrained")
	}
}

func TestRunnerSkipsClaimedExperiment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := &models.Experiment{ID: "claimed", ModelName: "regression", Status: models.StatusPending,
		Dataset: models.DatasetRef{Rows: linearRows(60, 6)}}
	if err := h.store.Create(ctx, exp); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, _ := h.kv.TryLock(ctx, "train:claimed", time.Minute); !ok {
		t.Fatalf("TryLock failed")
	}
	if err := h.runner.Run(ctx, &models.TrainingJob{ExperimentID: "claimed"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := h.store.Get(ctx, "claimed")
	if got.Status != models.StatusPending {
		t.Fatalf("claimed experiment moved to %s", got.Status)
	}
}

func TestPredictorTabular(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := h.train(t, &models.CreateExperimentRequest{ModelName: "regression", Rows: linearRows(120, 7)})

	preds, err := h.predictor.Inference(ctx, exp.ID, linearRows(10, 8))
	if err != nil {
		t.Fatalf("Inference: %v", err)
	}
	if preds.Len() != 10 || preds.IsMissing(0) {
		t.Fatalf("predictions = %+v", preds.Values)
	}

	fc, err := h.predictor.Forecast(ctx, exp.ID, 3, nil)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if fc.Supported || fc.Steps != 3 {
		t.Fatalf("forecast = %+v", fc)
	}
	if _, err := h.predictor.Forecast(ctx, exp.ID, 0, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("steps=0 err = %v", err)
	}

	next, err := h.predictor.PredictNext(ctx, exp.ID)
	if err != nil {
		t.Fatalf("PredictNext: %v", err)
	}
	if next.Source != SourceInference || next.Rows != DefaultRecentRows {
		t.Fatalf("next = %+v", next)
	}

	if ids := h.predictor.CachedModels(); len(ids) != 1 || ids[0] != exp.ID {
		t.Fatalf("cached = %v", ids)
	}
}

func TestPredictorArimaForecastsNext(t *testing.T) {
	h := newHarness(t)
	exp := h.train(t, &models.CreateExperimentRequest{ModelName: "arima", Rows: trendingRows(120, 9)})
	if exp.Status != models.StatusCompleted {
		t.Fatalf("status = %s (%s)", exp.Status, exp.Error)
	}

	next, err := h.predictor.PredictNext(context.Background(), exp.ID)
	if err != nil {
		t.Fatalf("PredictNext: %v", err)
	}
	if next.Source != SourceForecast || next.Date == nil {
		t.Fatalf("next = %+v", next)
	}
	if !next.Date.Equal(day0.AddDate(0, 0, 120)) {
		t.Fatalf("next date = %v", next.Date)
	}
}

func TestPredictorRejectsUnservable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.predictor.PredictNext(ctx, "missing"); !errors.Is(err, domrepo.ErrExperimentNotFound) {
		t.Fatalf("missing err = %v", err)
	}
	pending := &models.Experiment{ID: "p1", ModelName: "arima", Status: models.StatusPending}
	if err := h.store.Create(ctx, pending); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := h.predictor.Inference(ctx, "p1", linearRows(5, 1)); !errors.Is(err, domain.ErrNotTrained) {
		t.Fatalf("pending err = %v", err)
	}
}

func TestNewPredictorClampsRecentRows(t *testing.T) {
	p := NewPredictor(nil, nil, nil, cache.NewModelCache(0), WithRecentRows(10))
	if p.recentRows != MinRecentRows {
		t.Fatalf("recentRows = %d", p.recentRows)
	}
}
