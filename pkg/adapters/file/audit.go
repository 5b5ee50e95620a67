package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
)

// Default file names of the audit log, relative to the log directory.
const (
	TraceLogName = "trace_log.jsonl"
	ErrorLogName = "error_log.jsonl"
)

// AuditLog implements ports.AuditSink as two append-only JSON Lines files.
// One record is one line written under a mutex, so concurrent branches never interleave.
type AuditLog struct {
	mu     sync.Mutex
	trace  *os.File
	errors *os.File
	logger *slog.Logger
}

// AuditOption configures an AuditLog.
type AuditOption func(*AuditLog)

// WithAuditLogger sets where write failures are reported.
func WithAuditLogger(l *slog.Logger) AuditOption {
	return func(a *AuditLog) {
		if l != nil {
			a.logger = l
		}
	}
}

// OpenAuditLog opens (or creates) the trace and error logs inside dir.
func OpenAuditLog(dir string, opts ...AuditOption) (*AuditLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure log directory: %w", err)
	}

	trace, err := openAppend(filepath.Join(dir, TraceLogName))
	if err != nil {
		return nil, err
	}
	errs, err := openAppend(filepath.Join(dir, ErrorLogName))
	if err != nil {
		_ = trace.Close()
		return nil, err
	}

	a := &AuditLog{trace: trace, errors: errs, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

func (a *AuditLog) Append(_ context.Context, rec domain.AuditRecord) {
	a.write(a.trace, rec, rec.Step)
}

func (a *AuditLog) AppendError(_ context.Context, rec domain.ErrorRecord) {
	a.write(a.errors, rec, rec.Node)
}

func (a *AuditLog) write(f *os.File, v any, label string) {
	line, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("failed to encode audit record", "step", label, "error", err)
		return
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := f.Write(line); err != nil {
		a.logger.Error("failed to write audit record", "step", label, "error", err)
	}
}

// Close flushes and closes both files.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var first error
	for _, f := range []*os.File{a.trace, a.errors} {
		if err := f.Sync(); err != nil && first == nil {
			first = err
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
