package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "era"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	duplicateChecksTotal   *prometheus.CounterVec
	duplicateMatchScore    prometheus.Histogram
	duplicateCheckDuration prometheus.Histogram
	submissionsTotal       *prometheus.CounterVec
	reviewsTotal           *prometheus.CounterVec
	loginsTotal            *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		},
	)
	duplicateChecksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "duplicate_checks_total",
			Help:        "Duplicate lookups by outcome (match, no_match, store_error).",
			ConstLabels: serviceLabel,
		},
		[]string{"outcome"},
	)
	duplicateMatchScore := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "duplicate_match_score",
			Help:        "Similarity score of reported duplicates.",
			Buckets:     []float64{80, 85, 90, 95, 98, 100},
			ConstLabels: serviceLabel,
		},
	)
	duplicateCheckDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "duplicate_check_duration_seconds",
			Help:        "Duplicate lookup duration in seconds.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			ConstLabels: serviceLabel,
		},
	)
	submissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "submissions_total",
			Help:        "Error submissions by result.",
			ConstLabels: serviceLabel,
		},
		[]string{"result"},
	)
	reviewsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "reviews_total",
			Help:        "Saved reviews by resulting status.",
			ConstLabels: serviceLabel,
		},
		[]string{"status"},
	)
	loginsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "logins_total",
			Help:        "Login attempts by result.",
			ConstLabels: serviceLabel,
		},
		[]string{"result"},
	)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requestTotal,
		requestDuration,
		requestInFlight,
		duplicateChecksTotal,
		duplicateMatchScore,
		duplicateCheckDuration,
		submissionsTotal,
		reviewsTotal,
		loginsTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		duplicateChecksTotal:   duplicateChecksTotal,
		duplicateMatchScore:    duplicateMatchScore,
		duplicateCheckDuration: duplicateCheckDuration,
		submissionsTotal:       submissionsTotal,
		reviewsTotal:           reviewsTotal,
		loginsTotal:            loginsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds record ids so path labels stay bounded.
func normalizePath(path string) string {
	const prefix = "/v1/errors/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimPrefix(path, prefix)
	switch {
	case rest == "" || rest == "export.xlsx":
		return path
	case strings.HasSuffix(rest, "/review"):
		return prefix + "{id}/review"
	default:
		return prefix + "{id}"
	}
}

// ObserveDuplicateCheck implements the duplicate finder observer.
func (m *HTTPServerMetrics) ObserveDuplicateCheck(outcome string, score float64, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.duplicateChecksTotal.WithLabelValues(outcome).Inc()
	m.duplicateCheckDuration.Observe(duration.Seconds())
	if outcome == "match" {
		m.duplicateMatchScore.Observe(score)
	}
}

func (m *HTTPServerMetrics) RecordSubmission(result string) {
	m.submissionsTotal.WithLabelValues(result).Inc()
}

func (m *HTTPServerMetrics) RecordReview(status string) {
	m.reviewsTotal.WithLabelValues(status).Inc()
}

func (m *HTTPServerMetrics) RecordLogin(result string) {
	m.loginsTotal.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
