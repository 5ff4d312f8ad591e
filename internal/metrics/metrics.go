// Package metrics exposes Prometheus instrumentation for the query and video
// pipelines. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trace"

type Metrics struct {
	registry *prometheus.Registry

	queries           *prometheus.CounterVec
	responses         *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	degraded          *prometheus.CounterVec
	synthesisFailures prometheus.Counter
	videoAnalyses     *prometheus.CounterVec
	cleanupFailures   prometheus.Counter
}

// New registers every collector on a private registry along with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Voice queries by final outcome.",
		}, []string{"outcome"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Composed replies by response type.",
		}, []string{"type"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of each pipeline stage.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20, 40},
		}, []string{"stage"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_parses_total",
			Help:      "Backend outputs that did not parse and fell back to defaults.",
		}, []string{"stage"}),
		synthesisFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_failures_total",
			Help:      "Replies delivered without audio.",
		}),
		videoAnalyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_analyses_total",
			Help:      "Video analyses by outcome.",
		}, []string{"outcome"}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failures_total",
			Help:      "Temporary files that could not be removed.",
		}),
	}

	m.registry.MustRegister(
		m.queries,
		m.responses,
		m.stageDuration,
		m.degraded,
		m.synthesisFailures,
		m.videoAnalyses,
		m.cleanupFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordQuery(outcome string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordResponse(responseType string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(responseType).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) RecordDegraded(stage string) {
	if m == nil {
		return
	}
	m.degraded.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordSynthesisFailure() {
	if m == nil {
		return
	}
	m.synthesisFailures.Inc()
}

func (m *Metrics) RecordVideoAnalysis(outcome string) {
	if m == nil {
		return
	}
	m.videoAnalyses.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCleanupFailure() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}
