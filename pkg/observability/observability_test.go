package observability_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHooks(t *testing.T) {
	m, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnNodeLeave(ctx, &domain.NodeEvent{Node: domain.NodeStructuredPredictor, Duration: 10 * time.Millisecond})
	hooks.OnNodeLeave(ctx, &domain.NodeEvent{Node: domain.NodeStructuredPredictor, Fallback: true, Err: errors.New("down")})
	hooks.OnRoute(ctx, &domain.RouteEvent{Node: domain.NodeConfidenceCheck, Label: domain.RouteLowConfidence})
	hooks.OnRunEnd(ctx, &domain.RunEvent{Decision: domain.FinalAdmit, Severe: true, Duration: time.Second})
	hooks.OnRunEnd(ctx, &domain.RunEvent{Err: errors.New("boom")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues(domain.NodeStructuredPredictor)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeFallbacks.WithLabelValues(domain.NodeStructuredPredictor)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Routes.WithLabelValues(domain.NodeConfidenceCheck, domain.RouteLowConfidence)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(domain.FinalAdmit, "true", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("none", "false", "error")))
}

func TestMetricsHandler(t *testing.T) {
	m, err := observability.NewMetrics(nil)
	require.NoError(t, err)
	m.Hooks().OnRoute(context.Background(), &domain.RouteEvent{Node: domain.NodeSeverityGate, Label: domain.RouteContinue})

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `triage_routes_total{node="severity_gate",route="continue"} 1`)
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	var order []string
	a := domain.LifecycleHooks{OnRunStart: func(context.Context, *domain.RunEvent) { order = append(order, "a") }}
	b := domain.LifecycleHooks{
		OnRunStart: func(context.Context, *domain.RunEvent) { order = append(order, "b") },
		OnRoute:    func(context.Context, *domain.RouteEvent) { order = append(order, "route") },
	}

	hooks := observability.Combine(a, b, observability.LoggingHooks(logging.NewNop()))
	hooks.OnRunStart(context.Background(), &domain.RunEvent{})
	hooks.OnRoute(context.Background(), &domain.RouteEvent{})
	hooks.OnNodeLeave(context.Background(), &domain.NodeEvent{Fallback: true})

	assert.Equal(t, []string{"a", "b", "route"}, order)
	assert.Nil(t, hooks.OnRunEnd)
}
