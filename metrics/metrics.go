// Package metrics exposes Prometheus instrumentation for sabotage orchestration.
package metrics

import (
	"context"
	"net/http"

	"github.com/c360studio/coderonin/sabotage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coderonin"

// Metrics is a sabotage.Observer backed by its own Prometheus registry.
type Metrics struct {
	registry          *prometheus.Registry
	sabotageTotal     *prometheus.CounterVec
	docContextTotal   *prometheus.CounterVec
	generationSeconds prometheus.Histogram
}

// New creates the collectors and registers them, together with the Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sabotageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sabotage_total",
			Help:      "Sabotage orchestrations by category and outcome.",
		}, []string{"category", "outcome"}),
		docContextTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doc_context_total",
			Help:      "Documentation context lookups by resolution tier.",
		}, []string{"tier"}),
		generationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_seconds",
			Help:      "Latency of the text generation call.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
	}

	m.registry.MustRegister(
		m.sabotageTotal,
		m.docContextTotal,
		m.generationSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one orchestration report.
func (m *Metrics) Observe(_ context.Context, r sabotage.Report) {
	m.sabotageTotal.WithLabelValues(string(r.Category), string(r.Outcome)).Inc()

	// Unavailable runs stop before any lookup or generation.
	if r.Outcome == sabotage.OutcomeUnavailable {
		return
	}
	m.docContextTotal.WithLabelValues(string(r.DocTier)).Inc()
	if r.GenerationTime > 0 {
		m.generationSeconds.Observe(r.GenerationTime.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
