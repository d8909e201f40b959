package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	attempts  *prometheus.CounterVec
	attemptDu *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
	decisions *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

var engineBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}

// New creates a new Prometheus metrics recorder on reg. A nil reg uses the
// default registerer. Calling New twice on the same registry panics, same as
// promauto.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emerald_engine_attempts_total",
				Help: "Engine attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		attemptDu: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emerald_engine_attempt_duration_seconds",
				Help:    "Wall time of a single engine attempt",
				Buckets: engineBuckets,
			},
			[]string{"strategy"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emerald_engine_fallbacks_total",
				Help: "Fallbacks from one strategy to the next",
			},
			[]string{"from", "to"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emerald_decisions_total",
				Help: "Decision requests by result",
			},
			[]string{"result"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emerald_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emerald_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: engineBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAttempt records one engine attempt and its duration.
func (r *Recorder) RecordAttempt(strategy, outcome string, seconds float64) {
	r.attempts.WithLabelValues(strategy, outcome).Inc()
	r.attemptDu.WithLabelValues(strategy).Observe(seconds)
}

func (r *Recorder) RecordFallback(from, to string) {
	r.fallbacks.WithLabelValues(from, to).Inc()
}

func (r *Recorder) RecordDecision(result string) {
	r.decisions.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAttempt(string, string, float64) {}
func (Nop) RecordFallback(string, string)         {}
func (Nop) RecordDecision(string)                 {}
func (Nop) RecordError(string)                    {}
func (Nop) RecordLatency(string, float64)         {}

