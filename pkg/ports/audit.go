package ports

import (
	"context"

	"github.com/aretw0/triage/pkg/domain"
)

// AuditSink receives the trace and error logs of every run.
//
// Implementations must be safe for concurrent use: parallel branches write at the same time.
// Each record is written atomically. Write failures are logged by the sink, never returned,
// so auditing cannot fail a run.
type AuditSink interface {
	Append(ctx context.Context, rec domain.AuditRecord)
	AppendError(ctx context.Context, rec domain.ErrorRecord)
}

// NopAuditSink discards every record.
type NopAuditSink struct{}

func (NopAuditSink) Append(context.Context, domain.AuditRecord)      {}
func (NopAuditSink) AppendError(context.Context, domain.ErrorRecord) {}

// MultiAuditSink fans records out to several sinks.
type MultiAuditSink []AuditSink

func (m MultiAuditSink) Append(ctx context.Context, rec domain.AuditRecord) {
	for _, s := range m {
		s.Append(ctx, rec)
	}
}

func (m MultiAuditSink) AppendError(ctx context.Context, rec domain.ErrorRecord) {
	for _, s := range m {
		s.AppendError(ctx, rec)
	}
}
