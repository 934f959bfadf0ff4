package models

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
	"MDK/internal/services/features"
	"MDK/pkg/ml/forest"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// linear builds rows with close = 2*open - high + low + 0.01*volume.
func linear(n int, seed int64) *models.Dataset {
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
	return models.NewDataset(rows, true)
}

// trending is a random walk with positive drift, strictly increasing.
func trending(n int, seed int64) *models.Dataset {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]models.Candle, n)
	price := 100.0
	for i := range rows {
		price += 0.5 + rng.Float64()
		rows[i] = models.Candle{Date: day0.AddDate(0, 0, i), Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1000}
	}
	return models.NewDataset(rows, true)
}

func create(t *testing.T, name string, dir string, overrides map[string]interface{}) service.Model {
	t.Helper()
	m, err := NewFactory(WithSaveDir(dir)).CreateModel(name, overrides)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return m
}

func TestUnknownModel(t *testing.T) {
	_, err := NewFactory().CreateModel("does_not_exist", nil)
	if !errors.Is(err, domain.ErrUnknownModel) {
		t.Fatalf("want unknown model, got %v", err)
	}
}

func TestRegistryNames(t *testing.T) {
	names := Names()
	if len(names) != 9 {
		t.Fatalf("registered: %v", names)
	}
	if got := ClassName(RandomForestTimeSeries); got != "RandomForestTimeSeriesModel" {
		t.Fatalf("class name %s", got)
	}
	if got := ClassName(LSTM); got != "LstmModel" {
		t.Fatalf("class name %s", got)
	}
}

func TestOverrides(t *testing.T) {
	f := NewFactory(WithSaveDir(t.TempDir()))
	if _, err := f.CreateModel(LSTM, map[string]interface{}{"time_steps": 0}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	m, err := f.CreateModel(LSTM, map[string]interface{}{"time_steps": 7, "not_a_field": true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := m.(*lstmFamily).cfg.TimeSteps; got != 7 {
		t.Fatalf("time_steps = %d", got)
	}
	if got := m.(*lstmFamily).cfg.HiddenSize; got != 64 {
		t.Fatalf("hidden_size default lost: %d", got)
	}
	rf, _ := f.CreateModel(RandomForest, nil)
	if got := rf.(*tabular[*forest.Regressor]).cfg.RandomState; got != DefaultSeed {
		t.Fatalf("random_state = %d", got)
	}
}

func TestLegacyGlobalSeed(t *testing.T) {
	NewFactory(WithSeed(7), WithLegacyGlobalSeed(true))
	if got, want := features.GlobalInt63(), rand.New(rand.NewSource(7)).Int63(); got != want {
		t.Fatalf("global generator not reseeded: %d != %d", got, want)
	}
}

func TestNotTrained(t *testing.T) {
	for _, name := range Names() {
		m := create(t, name, t.TempDir(), nil)
		if _, err := m.Inference(linear(10, 1)); !errors.Is(err, domain.ErrNotTrained) {
			t.Fatalf("%s inference: %v", name, err)
		}
		if _, err := m.Forecast(1, nil); !errors.Is(err, domain.ErrNotTrained) {
			t.Fatalf("%s forecast: %v", name, err)
		}
		if err := m.Load(); !errors.Is(err, domain.ErrArtifactNotFound) {
			t.Fatalf("%s load: %v", name, err)
		}
	}
}

func TestRegressionEndToEnd(t *testing.T) {
	dir := t.TempDir()
	m := create(t, Regression, dir, nil)
	if err := m.Train(linear(100, 3)); err != nil {
		t.Fatalf("train: %v", err)
	}
	ev := m.(service.Evaluator).Evaluation()
	if ev.R2 <= 0.99 {
		t.Fatalf("validation r2 = %v", ev.R2)
	}
	if ev.TrainRows != 80 || ev.ValRows != 20 {
		t.Fatalf("split %d/%d", ev.TrainRows, ev.ValRows)
	}
	for _, f := range []string{"model.pkl", "scaler.pkl"} {
		if _, err := os.Stat(filepath.Join(dir, Regression, f)); err != nil {
			t.Fatalf("%s: %v", f, err)
		}
	}
	fc, err := m.Forecast(3, nil)
	if err != nil || fc.Supported || fc.Steps != 3 {
		t.Fatalf("forecast = %+v, %v", fc, err)
	}
}

func TestLaggedWarmupRowsMissing(t *testing.T) {
	m := create(t, RegressionTimeSeries, t.TempDir(), map[string]interface{}{"n_lags": 5})
	ds := linear(50, 4)
	if err := m.Train(ds); err != nil {
		t.Fatalf("train: %v", err)
	}
	pred, err := m.Inference(ds)
	if err != nil {
		t.Fatalf("inference: %v", err)
	}
	if pred.Len() != 50 {
		t.Fatalf("len = %d", pred.Len())
	}
	for i := 0; i < 50; i++ {
		if missing := pred.IsMissing(i); missing != (i < 5) {
			t.Fatalf("row %d missing=%v", i, missing)
		}
	}
}

func TestLaggedInferenceBoundary(t *testing.T) {
	m := create(t, RegressionTimeSeries, t.TempDir(), nil)
	ds := linear(60, 5)
	if err := m.Train(ds); err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := m.Inference(ds.Tail(5)); !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("want insufficient data, got %v", err)
	}
	pred, err := m.Inference(ds.Tail(6))
	if err != nil {
		t.Fatalf("inference: %v", err)
	}
	count := 0
	for i := 0; i < pred.Len(); i++ {
		if !pred.IsMissing(i) {
			count++
		}
	}
	if count != 1 || pred.IsMissing(pred.Len()-1) {
		t.Fatalf("want one prediction on the last row, got %v", pred.Values)
	}
	if pred.Index[pred.Len()-1] != 59 {
		t.Fatalf("last row index %d", pred.Index[pred.Len()-1])
	}
}

func assertSameInference(t *testing.T, a, b service.Model, ds *models.Dataset) {
	t.Helper()
	pa, err := a.Inference(ds)
	if err != nil {
		t.Fatalf("inference: %v", err)
	}
	pb, err := b.Inference(ds)
	if err != nil {
		t.Fatalf("inference after load: %v", err)
	}
	if pa.Len() != pb.Len() {
		t.Fatalf("lengths %d != %d", pa.Len(), pb.Len())
	}
	for i := range pa.Values {
		x, y := pa.Values[i], pb.Values[i]
		if math.IsNaN(x) && math.IsNaN(y) {
			continue
		}
		if math.Abs(x-y) > 1e-9 {
			t.Fatalf("row %d: %v != %v", i, x, y)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	small := map[string]interface{}{"n_estimators": 10, "num_boost_round": 20}
	for _, name := range []string{Regression, RegressionTimeSeries, RandomForest, RandomForestTimeSeries, Xgboost, XgboostTimeSeries} {
		dir := t.TempDir()
		ds := linear(80, 6)
		m := create(t, name, dir, small)
		if err := m.Train(ds); err != nil {
			t.Fatalf("%s train: %v", name, err)
		}
		fresh := create(t, name, dir, small)
		if err := fresh.Load(); err != nil {
			t.Fatalf("%s load: %v", name, err)
		}
		assertSameInference(t, m, fresh, ds)
	}
}

func TestForestDeterministic(t *testing.T) {
	ds := linear(60, 8)
	overrides := map[string]interface{}{"n_estimators": 8}
	a := create(t, RandomForest, t.TempDir(), overrides)
	b := create(t, RandomForest, t.TempDir(), overrides)
	if err := a.Train(ds); err != nil {
		t.Fatalf("train: %v", err)
	}
	if err := b.Train(ds); err != nil {
		t.Fatalf("train: %v", err)
	}
	assertSameInference(t, a, b, ds)
}

func TestArimaDifferencesTrendingSeries(t *testing.T) {
	dir := t.TempDir()
	m := create(t, Arima, dir, nil)
	ds := trending(120, 9)
	if err := m.Train(ds); err != nil {
		t.Fatalf("train: %v", err)
	}
	order, ok := m.(*arimaFamily).BestParams()
	if !ok || order.D < 1 {
		t.Fatalf("best params %v", order)
	}
	fc, err := m.Forecast(10, nil)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(fc.Values) != 10 || len(fc.Dates) != 10 {
		t.Fatalf("forecast shape %d/%d", len(fc.Values), len(fc.Dates))
	}
	if !fc.Dates[0].Equal(ds.Dates[119].AddDate(0, 0, 1)) {
		t.Fatalf("first forecast date %v", fc.Dates[0])
	}
	for _, v := range fc.Values {
		if v < 0 {
			t.Fatalf("negative forecast %v", v)
		}
	}
	pred, err := m.Inference(ds.Tail(10))
	if err != nil {
		t.Fatalf("inference: %v", err)
	}
	if pred.Len() != 10 {
		t.Fatalf("inference len %d", pred.Len())
	}
	fresh := create(t, Arima, dir, nil)
	if err := fresh.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameInference(t, m, fresh, ds.Tail(10))
}

func TestArimaTooShort(t *testing.T) {
	m := create(t, Arima, t.TempDir(), nil)
	if err := m.Train(trending(5, 1)); !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("want insufficient data, got %v", err)
	}
}

func TestProphetForecast(t *testing.T) {
	dir := t.TempDir()
	m := create(t, Prophet, dir, nil)
	ds := trending(90, 10)
	if err := m.Train(ds); err != nil {
		t.Fatalf("train: %v", err)
	}
	fc, err := m.Forecast(7, nil)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(fc.Values) != 7 || !fc.Dates[0].Equal(ds.Dates[89].AddDate(0, 0, 1)) {
		t.Fatalf("forecast %+v", fc)
	}
	for _, v := range fc.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite forecast %v", fc.Values)
		}
	}
	undated := models.NewDataset(ds.Candles(), false)
	if _, err := m.Inference(undated); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want validation error without dates, got %v", err)
	}
	fresh := create(t, Prophet, dir, nil)
	if err := fresh.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameInference(t, m, fresh, ds)
}

func TestLSTMSmall(t *testing.T) {
	dir := t.TempDir()
	overrides := map[string]interface{}{
		"hidden_size": 4, "num_layers": 1, "time_steps": 5, "epochs": 3,
		"batch_size": 8, "learning_rate": 0.01,
	}
	m := create(t, LSTM, dir, overrides)
	ds := trending(40, 11)
	if err := m.Train(ds); err != nil {
		t.Fatalf("train: %v", err)
	}
	for _, f := range []string{"model.pt", "scaler.pkl"} {
		if _, err := os.Stat(filepath.Join(dir, LSTM, f)); err != nil {
			t.Fatalf("%s: %v", f, err)
		}
	}
	pred, err := m.Inference(ds)
	if err != nil {
		t.Fatalf("inference: %v", err)
	}
	if pred.Len() != 35 || !pred.Dates[0].Equal(ds.Dates[5]) {
		t.Fatalf("inference len %d", pred.Len())
	}
	if _, err := m.Inference(ds.Tail(5)); !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("want insufficient data, got %v", err)
	}
	fc, err := m.Forecast(3, ds)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(fc.Values) != 3 || !fc.Dates[0].Equal(ds.Dates[39].AddDate(0, 0, 1)) {
		t.Fatalf("forecast %+v", fc)
	}
	if _, err := m.Forecast(3, ds.Tail(4)); !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("want insufficient data, got %v", err)
	}

	fresh := create(t, LSTM, dir, overrides)
	if err := fresh.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameInference(t, m, fresh, ds)

	other := create(t, LSTM, dir, map[string]interface{}{"hidden_size": 8, "num_layers": 1, "time_steps": 5})
	if err := other.Load(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want shape mismatch, got %v", err)
	}
}
