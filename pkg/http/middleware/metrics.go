package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	applogger "FinFuse/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

type requestMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	size     *prometheus.HistogramVec
}

var (
	httpMetricsOnce sync.Once
	httpMetrics     *requestMetrics
)

func newRequestMetrics() *requestMetrics {
	httpMetricsOnce.Do(func() {
		m := &requestMetrics{
			total: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Requests served, by route, method, and status",
			}, []string{"route", "method", "status"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request handling latency",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			}, []string{"route", "method", "status", "class"}),
			inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "http_in_flight_requests",
				Help: "Requests currently being handled",
			}, []string{"route", "method"}),
			size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "Response body size",
				Buckets: []float64{200, 500, 1_000, 2_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000},
			}, []string{"route", "method", "status", "class"}),
		}
		prometheus.MustRegister(m.total, m.duration, m.inFlight, m.size)
		httpMetrics = m
	})
	return httpMetrics
}

func (m *requestMetrics) observe(route, method string, status int, elapsed time.Duration, bytes int) {
	code := strconv.Itoa(status)
	class := statusClass(status)
	m.total.WithLabelValues(route, method, code).Inc()
	m.duration.WithLabelValues(route, method, code, class).Observe(elapsed.Seconds())
	m.size.WithLabelValues(route, method, code, class).Observe(float64(bytes))
}

// Metrics records request count, latency, size, and in-flight gauges per
// route. Routes are fixed paths here, so the raw URL path is a safe label
// value. Failures and requests slower than slowThreshold also produce a
// structured log line.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	m := newRequestMetrics()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, method := r.URL.Path, r.Method

			m.inFlight.WithLabelValues(route, method).Inc()
			start := time.Now()

			cw := &countingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(cw, r)

			elapsed := time.Since(start)
			m.observe(route, method, cw.status, elapsed, cw.written)
			m.inFlight.WithLabelValues(route, method).Dec()

			if l == nil {
				return
			}
			if cw.status >= 500 {
				logRequest(l.Error, "http request failed", route, method, cw, elapsed)
				return
			}
			if slowThreshold > 0 && elapsed >= slowThreshold {
				logRequest(l.Warn, "http request slow", route, method, cw, elapsed)
			}
		})
	}
}

func logRequest(emit func(string, ...applogger.Field), msg, route, method string, cw *countingWriter, elapsed time.Duration) {
	emit(msg,
		applogger.String("route", route),
		applogger.String("method", method),
		applogger.String("status", strconv.Itoa(cw.status)),
		applogger.Duration("duration_ms", elapsed),
		applogger.Int("bytes", cw.written),
	)
}

// countingWriter captures the status code and body size that the wrapped
// handler produced.
type countingWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *countingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *countingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func statusClass(code int) string {
	switch code / 100 {
	case 1:
		return "1xx"
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	default:
		return "5xx"
	}
}
