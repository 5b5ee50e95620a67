package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Default stream names of the audit log.
const (
	DefaultTraceStream = "triage:audit:trace"
	DefaultErrorStream = "triage:audit:errors"
)

// AuditStream implements ports.AuditSink on Redis streams. One record is one XADD.
type AuditStream struct {
	client      *backend.Client
	traceStream string
	errorStream string
	maxLen      int64
	logger      *slog.Logger
}

// AuditOption configures an AuditStream.
type AuditOption func(*AuditStream)

// WithStreams overrides the stream names.
func WithStreams(trace, errors string) AuditOption {
	return func(a *AuditStream) {
		a.traceStream = trace
		a.errorStream = errors
	}
}

// WithMaxLen caps each stream approximately at n entries.
func WithMaxLen(n int64) AuditOption {
	return func(a *AuditStream) {
		a.maxLen = n
	}
}

// WithAuditLogger sets where write failures are reported.
func WithAuditLogger(l *slog.Logger) AuditOption {
	return func(a *AuditStream) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAuditStream creates an audit sink on client.
func NewAuditStream(client *backend.Client, opts ...AuditOption) *AuditStream {
	a := &AuditStream{
		client:      client,
		traceStream: DefaultTraceStream,
		errorStream: DefaultErrorStream,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AuditStream) Append(ctx context.Context, rec domain.AuditRecord) {
	a.add(ctx, a.traceStream, rec.ExecutionID, rec.Step, rec)
}

func (a *AuditStream) AppendError(ctx context.Context, rec domain.ErrorRecord) {
	a.add(ctx, a.errorStream, rec.ExecutionID, rec.Node, rec)
}

func (a *AuditStream) add(ctx context.Context, stream, executionID, step string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("failed to encode audit record", "step", step, "error", err)
		return
	}

	args := &backend.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"execution_id": executionID,
			"step":         step,
			"record":       string(data),
		},
	}
	if a.maxLen > 0 {
		args.MaxLen = a.maxLen
		args.Approx = true
	}
	// The audit trail outlives a cancelled request.
	if err := a.client.XAdd(context.WithoutCancel(ctx), args).Err(); err != nil {
		a.logger.Error("failed to append audit record", "stream", stream, "step", step, "error", err)
	}
}

// Records reads back the trace records of one run in append order.
func (a *AuditStream) Records(ctx context.Context, executionID string) ([]domain.AuditRecord, error) {
	msgs, err := a.client.XRange(ctx, a.traceStream, "-", "+").Result()
	if err != nil {
		return nil, err
	}

	var out []domain.AuditRecord
	for _, m := range msgs {
		if m.Values["execution_id"] != executionID {
			continue
		}
		raw, _ := m.Values["record"].(string)
		var rec domain.AuditRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
