package runtime

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestSnapshot_State(t *testing.T) {
	s := domain.NewState("exec", 3, "note")
	s.Apply(domain.Patch{
		Record: &domain.PatientRecord{VisitID: 3, ESI: domain.Ptr(2), Extra: map[string]any{"ward": "B"}},
		Vitals: &domain.Vitals{HeartRate: domain.Ptr(101.0)},
	})

	snap := Snapshot(s)
	assert.Equal(t, "exec", snap["execution_id"])
	assert.Equal(t, int64(3), snap["visit_id"])
	rec := snap["patient_record"].(map[string]any)
	assert.Equal(t, int64(2), rec["ESI"])
	assert.Equal(t, "B", rec["extra"].(map[string]any)["ward"])
	assert.NotContains(t, snap, "fused_probability")
}

func TestSnapshot_StringifiesUnsupportedLeaves(t *testing.T) {
	ch := make(chan int)
	snap := Snapshot(map[string]any{
		"when":   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		"err":    errors.New("boom"),
		"nan":    math.NaN(),
		"chan":   ch,
		"nested": []any{1, "x", map[int]bool{7: true}},
		"bytes":  []byte("hi"),
	})
	assert.Equal(t, "2024-01-02T03:04:05Z", snap["when"])
	assert.Equal(t, "boom", snap["err"])
	assert.Equal(t, "NaN", snap["nan"])
	assert.IsType(t, "", snap["chan"])
	assert.Equal(t, []any{int64(1), "x", map[string]any{"7": true}}, snap["nested"])
	assert.Equal(t, "hi", snap["bytes"])
}

func TestSnapshot_NonObject(t *testing.T) {
	assert.Equal(t, map[string]any{}, Snapshot(nil))
	assert.Equal(t, map[string]any{"value": 1.5}, Snapshot(1.5))
}
