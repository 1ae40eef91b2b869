package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	draftTotal    *prometheus.CounterVec
	draftDuration *prometheus.HistogramVec
	draftInFlight prometheus.Gauge
	queueLag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	draftTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "solution_drafts_total",
			Help:      "Solution drafting attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)
	draftDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "solution_draft_duration_seconds",
			Help:      "Solution drafting duration in seconds by outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "outcome"},
	)
	draftInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "solution_drafts_in_flight",
			Help:      "Number of in-flight drafting tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between error submission and drafting start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(draftTotal, draftDuration, draftInFlight, queueLag)

	return &WorkerMetrics{
		registry:      registry,
		draftTotal:    draftTotal,
		draftDuration: draftDuration,
		draftInFlight: draftInFlight,
		queueLag:      queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDraft() {
	m.draftInFlight.Inc()
}

// FinishDraft records one drafting attempt. An empty outcome is derived from err.
func (m *WorkerMetrics) FinishDraft(service, outcome string, duration time.Duration, err error) {
	m.draftInFlight.Dec()

	if outcome == "" {
		outcome = "drafted"
		if err != nil {
			outcome = "failed"
		}
	}

	m.draftTotal.WithLabelValues(service, outcome).Inc()
	m.draftDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
