package domain

import (
	"fmt"
	"strings"
	"time"
)

// PatientRecord is the normalized encounter data returned by the record resolver.
// Field tags follow the column names of the visit tables so rows can be decoded directly.
type PatientRecord struct {
	VisitID   int64  `json:"visit_id" mapstructure:"visit_id"`
	PatientID int64  `json:"patient_id,omitempty" mapstructure:"patient_id"`
	Sex       string `json:"sex,omitempty" mapstructure:"sex"`
	AgeBucket string `json:"age_bucket,omitempty" mapstructure:"age_bucket"`

	HeartRate        *float64 `json:"heart_rate,omitempty" mapstructure:"heart_rate"`
	BPSystolic       *float64 `json:"bp_systolic,omitempty" mapstructure:"bp_systolic"`
	BPDiastolic      *float64 `json:"bp_diastolic,omitempty" mapstructure:"bp_diastolic"`
	RespRate         *float64 `json:"resp_rate,omitempty" mapstructure:"resp_rate"`
	TemperatureC     *float64 `json:"temperature_C,omitempty" mapstructure:"temperature_C"`
	OxygenSaturation *float64 `json:"oxygen_saturation,omitempty" mapstructure:"oxygen_saturation"`

	// ESI is the Emergency Severity Index (1 = most urgent, 5 = least).
	ESI          *int   `json:"ESI,omitempty" mapstructure:"ESI"`
	MentalStatus string `json:"mental_status,omitempty" mapstructure:"mental_status"`

	RecentAdmissions30d int    `json:"recent_admissions_30d" mapstructure:"recent_admissions_30d"`
	AdmissionDate       string `json:"Admission_Date,omitempty" mapstructure:"Admission_Date"`
	TriageNote          string `json:"triage_notes_redacted,omitempty" mapstructure:"triage_notes_redacted"`

	HistoricalVisitCount     int      `json:"historical_visit_count" mapstructure:"historical_visit_count"`
	HistoricalAdmissionCount int      `json:"historical_admission_count" mapstructure:"historical_admission_count"`
	AvgHRHistory             *float64 `json:"avg_hr_history,omitempty" mapstructure:"avg_hr_history"`
	AvgBPSysHistory          *float64 `json:"avg_bp_sys_history,omitempty" mapstructure:"avg_bp_sys_history"`
	LastAdmissionDate        string   `json:"last_admission_date,omitempty" mapstructure:"last_admission_date"`

	Temporal *TemporalFeatures `json:"temporal,omitempty" mapstructure:"-"`

	// Extra keeps columns the engine does not interpret.
	Extra map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

// HistoricalAdmissionRate returns admissions/visits over prior encounters, and false when there is no history.
func (r PatientRecord) HistoricalAdmissionRate() (float64, bool) {
	if r.HistoricalVisitCount <= 0 {
		return 0, false
	}
	return float64(r.HistoricalAdmissionCount) / float64(r.HistoricalVisitCount), true
}

// Clone returns a deep copy of the record.
func (r PatientRecord) Clone() PatientRecord {
	out := r
	out.HeartRate = cloneFloat(r.HeartRate)
	out.BPSystolic = cloneFloat(r.BPSystolic)
	out.BPDiastolic = cloneFloat(r.BPDiastolic)
	out.RespRate = cloneFloat(r.RespRate)
	out.TemperatureC = cloneFloat(r.TemperatureC)
	out.OxygenSaturation = cloneFloat(r.OxygenSaturation)
	out.AvgHRHistory = cloneFloat(r.AvgHRHistory)
	out.AvgBPSysHistory = cloneFloat(r.AvgBPSysHistory)
	if r.ESI != nil {
		out.ESI = Ptr(*r.ESI)
	}
	if r.Temporal != nil {
		t := *r.Temporal
		out.Temporal = &t
	}
	if r.Extra != nil {
		out.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Vitals is the validated subset of the record used by the severity gate.
// Every field is independently nullable: a missing value never triggers a rule.
type Vitals struct {
	Sex              *string  `json:"sex,omitempty" mapstructure:"sex"`
	AgeBucket        *string  `json:"age_bucket,omitempty" mapstructure:"age_bucket"`
	HeartRate        *float64 `json:"heart_rate,omitempty" mapstructure:"heart_rate"`
	RespRate         *float64 `json:"resp_rate,omitempty" mapstructure:"resp_rate"`
	BPSystolic       *float64 `json:"bp_systolic,omitempty" mapstructure:"bp_systolic"`
	BPDiastolic      *float64 `json:"bp_diastolic,omitempty" mapstructure:"bp_diastolic"`
	OxygenSaturation *float64 `json:"oxygen_saturation,omitempty" mapstructure:"oxygen_saturation"`
	TemperatureC     *float64 `json:"temperature_C,omitempty" mapstructure:"temperature_C"`
	ESI              *int     `json:"ESI,omitempty" mapstructure:"ESI"`
	MentalStatus     *string  `json:"mental_status,omitempty" mapstructure:"mental_status"`
	RecentAdmissions *int     `json:"recent_admissions_30d,omitempty" mapstructure:"recent_admissions_30d"`
}

// Clone returns a deep copy of the vitals.
func (v Vitals) Clone() Vitals {
	out := Vitals{
		Sex:              cloneString(v.Sex),
		AgeBucket:        cloneString(v.AgeBucket),
		HeartRate:        cloneFloat(v.HeartRate),
		RespRate:         cloneFloat(v.RespRate),
		BPSystolic:       cloneFloat(v.BPSystolic),
		BPDiastolic:      cloneFloat(v.BPDiastolic),
		OxygenSaturation: cloneFloat(v.OxygenSaturation),
		TemperatureC:     cloneFloat(v.TemperatureC),
		MentalStatus:     cloneString(v.MentalStatus),
	}
	if v.ESI != nil {
		out.ESI = Ptr(*v.ESI)
	}
	if v.RecentAdmissions != nil {
		out.RecentAdmissions = Ptr(*v.RecentAdmissions)
	}
	return out
}

// Resolution is what a RecordResolver returns for a visit.
type Resolution struct {
	Record PatientRecord
	Vitals Vitals
}

// TemporalFeatures are derived from the admission timestamp.
type TemporalFeatures struct {
	HourOfDay       int  `json:"hour_of_day"`
	DayOfWeek       int  `json:"day_of_week"` // 0 = Monday
	IsWeekend       bool `json:"is_weekend"`
	IsNight         bool `json:"is_night"` // 22:00-06:00
	Month           int  `json:"month"`
	IsHolidaySeason bool `json:"is_holiday_season"` // Nov, Dec, Jan
}

var admissionDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
}

// ExtractTemporalFeatures parses an admission date and derives shift/calendar features.
// It returns false when the date is empty or in an unknown format.
func ExtractTemporalFeatures(admissionDate string) (*TemporalFeatures, bool) {
	raw := strings.TrimSpace(admissionDate)
	if raw == "" {
		return nil, false
	}

	var (
		ts  time.Time
		err error
	)
	if strings.Contains(raw, "T") {
		ts, err = time.Parse(time.RFC3339Nano, strings.Replace(raw, "Z", "+00:00", 1))
		if err != nil {
			ts, err = time.Parse("2006-01-02T15:04:05", raw)
		}
	} else {
		for _, layout := range admissionDateLayouts {
			if ts, err = time.Parse(layout, raw); err == nil {
				break
			}
		}
	}
	if err != nil {
		return nil, false
	}

	weekday := (int(ts.Weekday()) + 6) % 7
	month := int(ts.Month())
	return &TemporalFeatures{
		HourOfDay:       ts.Hour(),
		DayOfWeek:       weekday,
		IsWeekend:       weekday >= 5,
		IsNight:         ts.Hour() >= 22 || ts.Hour() < 6,
		Month:           month,
		IsHolidaySeason: month == 11 || month == 12 || month == 1,
	}, true
}

// FormatForTextClassifier renders the record as the single line of text the text classifier was trained on.
func FormatForTextClassifier(r PatientRecord) string {
	esi := 0
	if r.ESI != nil {
		esi = *r.ESI
	}
	text := fmt.Sprintf(
		"age range: %s / sex: %s / heart rate: %s / systolic blood pressure: %s / "+
			"diastolic blood pressure: %s / respiratory rate: %s / temperature in Celsius: %s / "+
			"oxygen saturation: %s / ESI: %d / recent admissions (in 30 days): %d / %s",
		orUnknown(r.AgeBucket), orUnknown(r.Sex),
		formatOptional(r.HeartRate), formatOptional(r.BPSystolic), formatOptional(r.BPDiastolic),
		formatOptional(r.RespRate), formatOptional(r.TemperatureC), formatOptional(r.OxygenSaturation),
		esi, r.RecentAdmissions30d, r.TriageNote,
	)
	return strings.TrimSpace(text)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func formatOptional(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%g", *v)
}
