package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Apply_WritesOnlyNonNilFields(t *testing.T) {
	s := NewState("exec-1", 42, "looks unwell")
	s.Apply(Patch{StructuredScore: Ptr(0.7)})
	s.Apply(Patch{TextScore: Ptr(0.6)})
	s.Apply(Patch{})

	require.NotNil(t, s.StructuredScore)
	require.NotNil(t, s.TextScore)
	assert.Equal(t, 0.7, *s.StructuredScore)
	assert.Equal(t, 0.6, *s.TextScore)
	assert.Equal(t, "exec-1", s.ExecutionID)
	assert.Equal(t, int64(42), s.VisitID)
	assert.Nil(t, s.FusedProbability)
}

func TestState_Apply_DoesNotAlias(t *testing.T) {
	rec := &PatientRecord{VisitID: 1, HeartRate: Ptr(80.0)}
	s := NewState("exec", 1, "")
	s.Apply(Patch{Record: rec})

	*rec.HeartRate = 200
	assert.Equal(t, 80.0, *s.Record.HeartRate)
}

func TestState_Clone_IsDeep(t *testing.T) {
	s := NewState("exec", 7, "note")
	s.Apply(Patch{
		Record:          &PatientRecord{VisitID: 7, ESI: Ptr(3), Extra: map[string]any{"k": "v"}},
		Vitals:          &Vitals{HeartRate: Ptr(90.0)},
		SeverityReasons: []string{"a"},
		FusedProbability: Ptr(0.4),
	})

	clone := s.Clone()
	if diff := cmp.Diff(s, clone); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	*clone.Record.ESI = 1
	clone.Record.Extra["k"] = "changed"
	*clone.Vitals.HeartRate = 150
	clone.SeverityReasons[0] = "b"
	*clone.FusedProbability = 0.9

	assert.Equal(t, 3, *s.Record.ESI)
	assert.Equal(t, "v", s.Record.Extra["k"])
	assert.Equal(t, 90.0, *s.Vitals.HeartRate)
	assert.Equal(t, "a", s.SeverityReasons[0])
	assert.Equal(t, 0.4, *s.FusedProbability)
}

func TestState_Probability(t *testing.T) {
	s := NewState("e", 1, "")
	_, ok := s.Probability()
	assert.False(t, ok)

	s.Apply(Patch{PFinal: Ptr(1.0)})
	p, ok := s.Probability()
	assert.True(t, ok)
	assert.Equal(t, 1.0, p)

	s.Apply(Patch{FusedProbability: Ptr(0.3)})
	p, _ = s.Probability()
	assert.Equal(t, 0.3, p)
}

func TestPatch_IsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	assert.False(t, Patch{Severe: Ptr(false)}.IsEmpty())
	assert.False(t, Patch{SeverityReasons: []string{"x"}}.IsEmpty())
}

func TestNodeError_Unwrap(t *testing.T) {
	err := &NodeError{Node: NodeFetchData, Attempts: 1, Critical: true, Err: ErrVisitNotFound}
	assert.ErrorIs(t, err, ErrVisitNotFound)
	assert.Contains(t, err.Error(), "fetch_data")
}
