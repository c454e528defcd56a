package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the domain Metrics interface on the default Prometheus
// registry.
type Recorder struct {
	intentsEmitted *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	composite      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New registers the fusion engine gauges and counters and returns a Recorder
// over them.
func New() *Recorder {
	r := new(Recorder)
	r.intentsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finfuse_intents_emitted_total",
		Help: "Intents delivered, by backend and ticker",
	}, []string{"backend", "ticker"})
	r.errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finfuse_errors_total",
		Help: "Errors by category",
	}, []string{"type"})
	r.composite = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finfuse_composite_score",
		Help: "Last composite score fused for a ticker",
	}, []string{"ticker"})
	r.latency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finfuse_operation_duration_seconds",
		Help:    "Operation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	return r
}

// RecordIntentEmitted counts one intent delivered to a backend.
func (r *Recorder) RecordIntentEmitted(backend, ticker string) {
	r.intentsEmitted.WithLabelValues(backend, ticker).Inc()
}

// RecordError counts one error under the given category.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordComposite keeps the most recent composite score per ticker.
func (r *Recorder) RecordComposite(ticker string, score float64) {
	r.composite.WithLabelValues(ticker).Set(score)
}

// RecordLatency observes one operation duration in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
