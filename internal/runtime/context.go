package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
)

// RunContext carries everything that belongs to one run. It replaces any process-wide
// "current execution" so concurrent runs never see each other's identifiers.
type RunContext struct {
	ExecutionID string
	VisitID     int64
	StartedAt   time.Time

	logger *slog.Logger
	audit  ports.AuditSink
	now    func() time.Time
}

// NewRunContext creates the context of one run. Nil logger or sink fall back to no-ops.
func NewRunContext(executionID string, visitID int64, logger *slog.Logger, audit ports.AuditSink) *RunContext {
	if logger == nil {
		logger = logging.NewNop()
	}
	if audit == nil {
		audit = ports.NopAuditSink{}
	}
	return &RunContext{
		ExecutionID: executionID,
		VisitID:     visitID,
		StartedAt:   time.Now(),
		logger:      logger.With("execution_id", executionID, "visit_id", visitID),
		audit:       audit,
		now:         time.Now,
	}
}

// Logger returns the run-scoped logger.
func (rc *RunContext) Logger() *slog.Logger {
	return rc.logger
}

// Elapsed returns the time since the run started.
func (rc *RunContext) Elapsed() time.Duration {
	return rc.now().Sub(rc.StartedAt)
}

// Record appends a free-form audit record for this run.
func (rc *RunContext) Record(ctx context.Context, step string, input, output any, meta map[string]any) {
	rc.audit.Append(ctx, domain.AuditRecord{
		Timestamp:   rc.now(),
		ExecutionID: rc.ExecutionID,
		Step:        step,
		Input:       Snapshot(input),
		Output:      Snapshot(output),
		Meta:        meta,
	})
}

func (rc *RunContext) appendNode(ctx context.Context, node string, kind domain.AuditKind, input, output any, duration *time.Duration, errMsg string) {
	rec := domain.AuditRecord{
		Timestamp:   rc.now(),
		ExecutionID: rc.ExecutionID,
		Step:        node + "_" + string(kind),
		Node:        node,
		Kind:        kind,
		Input:       Snapshot(input),
		Output:      Snapshot(output),
		Meta:        map[string]any{},
		Error:       errMsg,
	}
	if duration != nil {
		ms := float64(duration.Microseconds()) / 1000
		rec.DurationMS = &ms
		rec.Meta["performance"] = map[string]any{"duration_ms": ms}
	}
	if errMsg != "" {
		rec.Meta["error"] = errMsg
	}
	rc.audit.Append(ctx, rec)
}

func (rc *RunContext) appendError(ctx context.Context, node string, attempt int, err error, stack string, state any) {
	rc.audit.AppendError(ctx, domain.ErrorRecord{
		Timestamp:    rc.now(),
		ExecutionID:  rc.ExecutionID,
		Node:         node,
		Attempt:      attempt,
		ErrorType:    errorKind(err),
		ErrorMessage: err.Error(),
		Stack:        stack,
		State:        Snapshot(state),
	})
}
