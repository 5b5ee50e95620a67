package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/triage/pkg/domain"
)

// recordingSink keeps every record in memory for assertions.
type recordingSink struct {
	mu     sync.Mutex
	audits []domain.AuditRecord
	errs   []domain.ErrorRecord
}

func (r *recordingSink) Append(_ context.Context, rec domain.AuditRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, rec)
}

func (r *recordingSink) AppendError(_ context.Context, rec domain.ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, rec)
}

func (r *recordingSink) steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.audits))
	for i, a := range r.audits {
		out[i] = a.Step
	}
	return out
}

func (r *recordingSink) stepsFor(node string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, a := range r.audits {
		if a.Node == node {
			out = append(out, a.Step)
		}
	}
	return out
}

// recordingSleep captures backoff delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newRC(sink *recordingSink) *RunContext {
	return NewRunContext("exec-test", 1, nil, sink)
}

func constNode(p domain.Patch) NodeFunc {
	return func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		return p, nil
	}
}
