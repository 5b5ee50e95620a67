package ports

import (
	"context"

	"github.com/aretw0/triage/pkg/domain"
)

// CheckpointStore persists run state so a finished triage can be inspected later.
type CheckpointStore interface {
	// Save persists the state for a given execution ID.
	Save(ctx context.Context, executionID string, state *domain.State) error

	// Load retrieves the state for a given execution ID.
	// Returns domain.ErrCheckpointNotFound if the execution does not exist.
	Load(ctx context.Context, executionID string) (*domain.State, error)

	// Delete removes the state for a given execution ID.
	Delete(ctx context.Context, executionID string) error

	// List returns the execution IDs currently stored.
	List(ctx context.Context) ([]string, error)
}
