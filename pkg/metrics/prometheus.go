package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainingRuns      *prometheus.CounterVec
	trainingDuration  *prometheus.HistogramVec
	inferenceTotal    *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	cacheEvents       *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// New registers the collectors on reg, or on the default registry when
// reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		trainingRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdk_training_runs_total",
				Help: "Training runs by model family and result",
			},
			[]string{"model", "result"},
		),
		trainingDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mdk_training_duration_seconds",
				Help:    "Wall time of a training run",
				Buckets: prometheus.ExponentialBuckets(0.05, 4, 9),
			},
			[]string{"model"},
		),
		inferenceTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdk_inference_total",
				Help: "Serving calls by model family, operation and result",
			},
			[]string{"model", "op", "result"},
		),
		inferenceDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mdk_inference_duration_seconds",
				Help:    "Duration of serving calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "op"},
		),
		cacheEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdk_model_cache_events_total",
				Help: "Loaded-model cache hits, misses and evictions",
			},
			[]string{"event"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"component"},
		),
	}
}

// RecordTraining records one finished training run.
func (r *Recorder) RecordTraining(model, result string, seconds float64) {
	r.trainingRuns.WithLabelValues(model, result).Inc()
	r.trainingDuration.WithLabelValues(model).Observe(seconds)
}

func (r *Recorder) RecordInference(model, op, result string, seconds float64) {
	r.inferenceTotal.WithLabelValues(model, op, result).Inc()
	r.inferenceDuration.WithLabelValues(model, op).Observe(seconds)
}

func (r *Recorder) RecordCache(event string) {
	r.cacheEvents.WithLabelValues(event).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(component string) {
	r.errorsTotal.WithLabelValues(component).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTraining(string, string, float64)          {}
func (Nop) RecordInference(string, string, string, float64) {}
func (Nop) RecordCache(string)                              {}
func (Nop) RecordError(string)                              {}
