package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "triage"

// Metrics holds the Prometheus collectors fed by engine lifecycle hooks.
type Metrics struct {
	Runs          *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	NodeVisits    *prometheus.CounterVec
	NodeDuration  *prometheus.HistogramVec
	NodeFallbacks *prometheus.CounterVec
	Routes        *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses a fresh private registry.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of finished triage runs by outcome.",
			},
			[]string{"decision", "severe", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of triage runs.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_visits_total",
				Help:      "Total number of node executions.",
			},
			[]string{"node"},
		),
		NodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of node executions including retries.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node"},
		),
		NodeFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_fallbacks_total",
				Help:      "Total number of nodes that exhausted retries and returned safe defaults.",
			},
			[]string{"node"},
		),
		Routes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routes_total",
				Help:      "Total number of conditional routing decisions.",
			},
			[]string{"node", "route"},
		),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{m.Runs, m.RunDuration, m.NodeVisits, m.NodeDuration, m.NodeFallbacks, m.Routes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register triage metrics: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			status := statusLabel(e.Err)
			decision := e.Decision
			if decision == "" {
				decision = "none"
			}
			severe := "false"
			if e.Severe {
				severe = "true"
			}
			m.Runs.WithLabelValues(decision, severe, status).Inc()
			m.RunDuration.WithLabelValues(status).Observe(e.Duration.Seconds())
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.Node).Inc()
			m.NodeDuration.WithLabelValues(e.Node).Observe(e.Duration.Seconds())
			if e.Fallback {
				m.NodeFallbacks.WithLabelValues(e.Node).Inc()
			}
		},
		OnRoute: func(_ context.Context, e *domain.RouteEvent) {
			m.Routes.WithLabelValues(e.Node, e.Label).Inc()
		},
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
