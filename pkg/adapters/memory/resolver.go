package memory

import (
	"context"
	"sync"

	"github.com/aretw0/triage/pkg/domain"
)

// Resolver implements ports.RecordResolver over a fixed set of encounters.
type Resolver struct {
	mu     sync.RWMutex
	visits map[int64]domain.Resolution
}

// NewResolver creates a resolver seeded with the given encounters, keyed by Record.VisitID.
func NewResolver(visits ...domain.Resolution) *Resolver {
	r := &Resolver{visits: make(map[int64]domain.Resolution, len(visits))}
	for _, v := range visits {
		r.Put(v)
	}
	return r
}

// Put adds or replaces an encounter.
func (r *Resolver) Put(v domain.Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits[v.Record.VisitID] = domain.Resolution{Record: v.Record.Clone(), Vitals: v.Vitals.Clone()}
}

// Resolve returns a copy of the encounter or domain.ErrVisitNotFound.
func (r *Resolver) Resolve(ctx context.Context, visitID int64) (*domain.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.visits[visitID]
	if !ok {
		return nil, domain.ErrVisitNotFound
	}
	return &domain.Resolution{Record: v.Record.Clone(), Vitals: v.Vitals.Clone()}, nil
}
