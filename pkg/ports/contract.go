package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore implementation
// adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	executionID := "contract-test-exec-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(executionID, 42, "short of breath")
		state.Apply(domain.Patch{
			Record:           &domain.PatientRecord{VisitID: 42, AgeBucket: "50-64", ESI: domain.Ptr(3)},
			StructuredScore:  domain.Ptr(0.62),
			FusedProbability: domain.Ptr(0.58),
			FinalDecision:    domain.Ptr(domain.FinalAdmit),
		})

		err := store.Save(ctx, executionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, executionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, executionID, loaded.ExecutionID)
		assert.Equal(t, int64(42), loaded.VisitID)
		require.NotNil(t, loaded.Record)
		assert.Equal(t, "50-64", loaded.Record.AgeBucket)
		require.NotNil(t, loaded.FusedProbability)
		assert.InDelta(t, 0.58, *loaded.FusedProbability, 1e-9)
		assert.Equal(t, domain.FinalAdmit, domain.Deref(loaded.FinalDecision))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+executionID)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, executionID, domain.NewState(executionID, 1, ""))
		require.NoError(t, err)

		err = store.Delete(ctx, executionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, executionID)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound, "Load after Delete should return ErrCheckpointNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := executionID + "-1"
		id2 := executionID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1, 1, ""))
		_ = store.Save(ctx, id2, domain.NewState(id2, 2, ""))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
