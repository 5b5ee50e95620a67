package policy

import "github.com/aretw0/triage/pkg/domain"

var ageRisk = map[string]float64{
	"0-17":  0.1,
	"18-34": 0.0,
	"35-49": 0.05,
	"50-64": 0.1,
	"65+":   0.2,
}

var esiRisk = map[int]float64{
	1: 0.3,
	2: 0.25,
	3: 0.1,
	4: 0.05,
	5: 0.0,
}

const (
	unknownESIRisk   = 0.1
	maxReadmitRisk   = 0.2
	historyWeight    = 0.15
	vitalStepRisk    = 0.05
	maxVitalsRisk    = 0.15
	defaultHeartRate = 70
	defaultSystolic  = 120
	defaultSpO2      = 98
)

// RiskScore computes the patient risk in [0,1] from demographics, acuity, admission history and vitals.
func RiskScore(rec domain.PatientRecord) float64 {
	risk := ageRisk[rec.AgeBucket]

	if rec.ESI == nil {
		risk += unknownESIRisk
	} else if r, ok := esiRisk[*rec.ESI]; ok {
		risk += r
	} else {
		risk += unknownESIRisk
	}

	risk += min(float64(rec.RecentAdmissions30d)*0.1, maxReadmitRisk)

	if rate, ok := rec.HistoricalAdmissionRate(); ok {
		risk += rate * historyWeight
	}

	hr := valueOr(rec.HeartRate, defaultHeartRate)
	sys := valueOr(rec.BPSystolic, defaultSystolic)
	spo2 := valueOr(rec.OxygenSaturation, defaultSpO2)

	vitals := 0.0
	if hr > 100 || hr < 60 {
		vitals += vitalStepRisk
	}
	if sys > 160 || sys < 90 {
		vitals += vitalStepRisk
	}
	if spo2 < 95 {
		vitals += vitalStepRisk
	}
	risk += min(vitals, maxVitalsRisk)

	return min(risk, 1.0)
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
