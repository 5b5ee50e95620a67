package sqlite

import (
	"context"
	"fmt"
)

// Visit is one row of the seed data set.
type Visit struct {
	VisitID          int64
	PatientID        int64
	Sex              string
	AgeBucket        string
	HeartRate        float64
	BPSystolic       float64
	BPDiastolic      float64
	RespRate         float64
	TemperatureC     float64
	OxygenSaturation float64
	RecentAdmissions int
	Admitted         bool
	AdmissionDate    string
	Note             string
	ESI              int
}

// SampleVisits is a small synthetic data set covering the main triage paths.
var SampleVisits = []Visit{
	{1001, 1, "F", "65+", 88, 132, 84, 18, 37.1, 96, 1, true, "2024-03-02 10:20:00", "follow-up for heart failure", 3},
	{1002, 1, "F", "65+", 104, 118, 76, 22, 38.9, 91, 2, false, "2024-12-23 23:40:00", "shortness of breath, productive cough, febrile", 3},
	{1003, 2, "M", "18-34", 72, 124, 80, 14, 36.8, 99, 0, false, "2024-06-14 14:05:00", "ankle sprain after football", 5},
	{1004, 3, "M", "50-64", 96, 76, 50, 28, 37.4, 93, 0, true, "2024-07-01 03:12:00", "dizziness, near syncope, melena", 2},
	{1005, 4, "F", "35-49", 110, 150, 95, 20, 37.9, 85, 0, false, "2024-01-09 19:30:00", "acute asthma exacerbation", 3},
	{1006, 5, "M", "0-17", 90, 110, 70, 20, 37.0, 98, 0, false, "2024-09-21 16:45:00", "abdominal pain, tolerating fluids", 4},
}

// Seed inserts rows, replacing visits that already exist.
func (r *Resolver) Seed(ctx context.Context, visits []Visit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range visits {
		admitted := 0
		if v.Admitted {
			admitted = 1
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO Visit_Details
			(visit_id, patient_id, sex, age_bucket, heart_rate, bp_systolic, bp_diastolic, resp_rate,
			 temperature_C, oxygen_saturation, recent_admissions_30d, admitted, Admission_Date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.VisitID, v.PatientID, v.Sex, v.AgeBucket, v.HeartRate, v.BPSystolic, v.BPDiastolic, v.RespRate,
			v.TemperatureC, v.OxygenSaturation, v.RecentAdmissions, admitted, v.AdmissionDate); err != nil {
			return fmt.Errorf("insert visit %d: %w", v.VisitID, err)
		}
		if v.Note != "" {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO Triage_Notes
				(visit_id, patient_id, triage_notes_redacted) VALUES (?, ?, ?)`,
				v.VisitID, v.PatientID, v.Note); err != nil {
				return fmt.Errorf("insert note %d: %w", v.VisitID, err)
			}
		}
		if v.ESI > 0 {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO ESI
				(visit_id, patient_id, ESI) VALUES (?, ?, ?)`,
				v.VisitID, v.PatientID, v.ESI); err != nil {
				return fmt.Errorf("insert ESI %d: %w", v.VisitID, err)
			}
		}
	}
	return tx.Commit()
}
