package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord_WeakTypes(t *testing.T) {
	row := map[string]any{
		"visit_id":              int64(12),
		"age_bucket":            "65+",
		"heart_rate":            "104",
		"ESI":                   int64(2),
		"recent_admissions_30d": int64(1),
		"triage_notes_redacted": []byte("chest pain"),
		"ward":                  "B",
	}

	rec, err := DecodeRecord(row)
	require.NoError(t, err)
	assert.Equal(t, int64(12), rec.VisitID)
	assert.Equal(t, "65+", rec.AgeBucket)
	require.NotNil(t, rec.HeartRate)
	assert.Equal(t, 104.0, *rec.HeartRate)
	require.NotNil(t, rec.ESI)
	assert.Equal(t, 2, *rec.ESI)
	assert.Equal(t, "chest pain", rec.TriageNote)
	assert.Equal(t, "B", rec.Extra["ward"])
}

func TestDecodeVitals_PartialPopulation(t *testing.T) {
	row := map[string]any{
		"heart_rate":        "not-a-number",
		"oxygen_saturation": 91.0,
		"bp_systolic":       nil,
		"ESI":               int64(4),
	}

	v, err := DecodeVitals(row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heart_rate")
	assert.Nil(t, v.HeartRate)
	assert.Nil(t, v.BPSystolic)
	require.NotNil(t, v.OxygenSaturation)
	assert.Equal(t, 91.0, *v.OxygenSaturation)
	require.NotNil(t, v.ESI)
	assert.Equal(t, 4, *v.ESI)
}

func TestExtractTemporalFeatures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *TemporalFeatures
	}{
		{
			name:  "datetime with seconds on a saturday night",
			input: "2024-01-06 23:15:00",
			want:  &TemporalFeatures{HourOfDay: 23, DayOfWeek: 5, IsWeekend: true, IsNight: true, Month: 1, IsHolidaySeason: true},
		},
		{
			name:  "date only on a wednesday",
			input: "2024-05-15",
			want:  &TemporalFeatures{HourOfDay: 0, DayOfWeek: 2, IsNight: true, Month: 5},
		},
		{
			name:  "iso with zulu",
			input: "2024-07-01T14:00:00Z",
			want:  &TemporalFeatures{HourOfDay: 14, DayOfWeek: 0, Month: 7},
		},
		{
			name:  "us format",
			input: "11/29/2024 08:30:00",
			want:  &TemporalFeatures{HourOfDay: 8, DayOfWeek: 4, Month: 11, IsHolidaySeason: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractTemporalFeatures(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := ExtractTemporalFeatures("")
	assert.False(t, ok)
	_, ok = ExtractTemporalFeatures("yesterday")
	assert.False(t, ok)
}

func TestFormatForTextClassifier(t *testing.T) {
	rec := PatientRecord{
		AgeBucket:           "35-49",
		Sex:                 "F",
		HeartRate:           Ptr(88.0),
		ESI:                 Ptr(3),
		RecentAdmissions30d: 1,
		TriageNote:          "abdominal pain",
	}
	got := FormatForTextClassifier(rec)
	assert.Contains(t, got, "age range: 35-49 / sex: F / heart rate: 88 /")
	assert.Contains(t, got, "systolic blood pressure: unknown")
	assert.Contains(t, got, "ESI: 3 / recent admissions (in 30 days): 1 / abdominal pain")
}

func TestPatientRecord_HistoricalAdmissionRate(t *testing.T) {
	_, ok := PatientRecord{}.HistoricalAdmissionRate()
	assert.False(t, ok)

	rate, ok := PatientRecord{HistoricalVisitCount: 4, HistoricalAdmissionCount: 1}.HistoricalAdmissionRate()
	assert.True(t, ok)
	assert.Equal(t, 0.25, rate)
}
