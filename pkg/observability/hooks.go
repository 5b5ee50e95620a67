package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/triage/pkg/domain"
)

// Combine merges several hook sets into one. Callbacks run in argument order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnRunStart = chain(out.OnRunStart, h.OnRunStart)
		out.OnRunEnd = chain(out.OnRunEnd, h.OnRunEnd)
		out.OnNodeEnter = chain(out.OnNodeEnter, h.OnNodeEnter)
		out.OnNodeLeave = chain(out.OnNodeLeave, h.OnNodeLeave)
		out.OnRoute = chain(out.OnRoute, h.OnRoute)
	}
	return out
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}

// LoggingHooks logs node transitions and routing decisions at debug level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "execution_id", e.ExecutionID, "node", e.Node)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			attrs := []any{
				"execution_id", e.ExecutionID,
				"node", e.Node,
				"attempt", e.Attempts,
				"duration_ms", e.Duration.Milliseconds(),
			}
			if e.Fallback {
				logger.WarnContext(ctx, "node_fallback", append(attrs, "error", e.Err)...)
				return
			}
			logger.DebugContext(ctx, "node_leave", attrs...)
		},
		OnRoute: func(ctx context.Context, e *domain.RouteEvent) {
			logger.DebugContext(ctx, "route", "execution_id", e.ExecutionID, "node", e.Node, "route", e.Label, "target", e.Target)
		},
	}
}
