package memory

import (
	"context"
	"sync"

	"github.com/aretw0/triage/pkg/domain"
)

// AuditLog implements ports.AuditSink in memory. Useful for tests and the MCP server.
type AuditLog struct {
	mu      sync.Mutex
	records []domain.AuditRecord
	errors  []domain.ErrorRecord
}

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (a *AuditLog) Append(_ context.Context, rec domain.AuditRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
}

func (a *AuditLog) AppendError(_ context.Context, rec domain.ErrorRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, rec)
}

// Records returns a copy of the trace records.
func (a *AuditLog) Records() []domain.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditRecord(nil), a.records...)
}

// Errors returns a copy of the error records.
func (a *AuditLog) Errors() []domain.ErrorRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.ErrorRecord(nil), a.errors...)
}

// ForExecution returns the trace records of one run in append order.
func (a *AuditLog) ForExecution(executionID string) []domain.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditRecord
	for _, r := range a.records {
		if r.ExecutionID == executionID {
			out = append(out, r)
		}
	}
	return out
}

// Steps returns the step names of one run in append order.
func (a *AuditLog) Steps(executionID string) []string {
	recs := a.ForExecution(executionID)
	steps := make([]string, len(recs))
	for i, r := range recs {
		steps[i] = r.Step
	}
	return steps
}

// Nodes returns the distinct nodes an execution visited, in first-visit order.
func (a *AuditLog) Nodes(executionID string) []string {
	seen := make(map[string]bool)
	var nodes []string
	for _, r := range a.ForExecution(executionID) {
		if r.Node == "" || seen[r.Node] {
			continue
		}
		seen[r.Node] = true
		nodes = append(nodes, r.Node)
	}
	return nodes
}
