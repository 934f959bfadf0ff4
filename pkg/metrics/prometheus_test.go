package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.RecordTraining("lstm", "completed", 1.5)
	r.RecordTraining("lstm", "failed", 0.1)
	r.RecordInference("arima", "forecast", "ok", 0.01)
	r.RecordCache("hit")
	r.RecordCache("hit")
	r.RecordError("runner")

	if got := testutil.ToFloat64(r.trainingRuns.WithLabelValues("lstm", "completed")); got != 1 {
		t.Fatalf("completed runs = %v", got)
	}
	if got := testutil.ToFloat64(r.cacheEvents.WithLabelValues("hit")); got != 2 {
		t.Fatalf("cache hits = %v", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("runner")); got != 1 {
		t.Fatalf("errors = %v", got)
	}
}
