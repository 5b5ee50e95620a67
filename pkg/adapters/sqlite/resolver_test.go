package sqlite_test

import (
	"context"
	"testing"

	"github.com/aretw0/triage/pkg/adapters/sqlite"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.RecordResolver = (*sqlite.Resolver)(nil)

func seeded(t *testing.T) *sqlite.Resolver {
	t.Helper()
	r, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Seed(context.Background(), sqlite.SampleVisits))
	return r
}

func TestResolver_JoinsNotesESIAndHistory(t *testing.T) {
	r := seeded(t)

	res, err := r.Resolve(context.Background(), 1002)
	require.NoError(t, err)

	rec := res.Record
	assert.Equal(t, int64(1002), rec.VisitID)
	assert.Equal(t, int64(1), rec.PatientID)
	assert.Equal(t, "65+", rec.AgeBucket)
	assert.Equal(t, "shortness of breath, productive cough, febrile", rec.TriageNote)
	require.NotNil(t, rec.ESI)
	assert.Equal(t, 3, *rec.ESI)
	assert.Equal(t, 2, rec.RecentAdmissions30d)

	assert.Equal(t, 1, rec.HistoricalVisitCount)
	assert.Equal(t, 1, rec.HistoricalAdmissionCount)
	require.NotNil(t, rec.AvgHRHistory)
	assert.Equal(t, 88.0, *rec.AvgHRHistory)
	assert.Equal(t, "2024-03-02 10:20:00", rec.LastAdmissionDate)
	assert.EqualValues(t, 0, rec.Extra["admitted"])

	require.NotNil(t, res.Vitals.OxygenSaturation)
	assert.Equal(t, 91.0, *res.Vitals.OxygenSaturation)
	require.NotNil(t, res.Vitals.RecentAdmissions)
	assert.Equal(t, 2, *res.Vitals.RecentAdmissions)
}

func TestResolver_FirstVisitHasNoHistory(t *testing.T) {
	r := seeded(t)

	res, err := r.Resolve(context.Background(), 1003)
	require.NoError(t, err)
	assert.Zero(t, res.Record.HistoricalVisitCount)
	assert.Nil(t, res.Record.AvgHRHistory)
	assert.Empty(t, res.Record.LastAdmissionDate)
}

func TestResolver_UnknownVisit(t *testing.T) {
	r := seeded(t)

	_, err := r.Resolve(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrVisitNotFound)
}

func TestResolver_MissingESIStaysNil(t *testing.T) {
	r := seeded(t)
	require.NoError(t, r.Seed(context.Background(), []sqlite.Visit{{
		VisitID: 2001, PatientID: 9, AgeBucket: "18-34", HeartRate: 70, OxygenSaturation: 99,
	}}))

	res, err := r.Resolve(context.Background(), 2001)
	require.NoError(t, err)
	assert.Nil(t, res.Record.ESI)
	assert.Nil(t, res.Vitals.ESI)
	assert.Empty(t, res.Record.TriageNote)
}
