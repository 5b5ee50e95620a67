package ports

import (
	"context"

	"github.com/aretw0/triage/pkg/domain"
)

// RecordResolver loads the encounter data for a visit.
type RecordResolver interface {
	// Resolve returns the record and validated vitals for visitID.
	// Returns domain.ErrVisitNotFound when no encounter matches.
	Resolve(ctx context.Context, visitID int64) (*domain.Resolution, error)
}

// RecordResolverFunc adapts a function to RecordResolver.
type RecordResolverFunc func(ctx context.Context, visitID int64) (*domain.Resolution, error)

func (f RecordResolverFunc) Resolve(ctx context.Context, visitID int64) (*domain.Resolution, error) {
	return f(ctx, visitID)
}
