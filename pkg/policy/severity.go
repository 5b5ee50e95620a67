package policy

import (
	"fmt"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
)

// Assessment is the outcome of the severity gate.
type Assessment struct {
	Severe  bool
	Reasons []string
}

// Rationale renders the explanation attached to an immediate admission.
func (a Assessment) Rationale() string {
	return fmt.Sprintf("Severe case: %s. Immediate admission required.", strings.Join(a.Reasons, ", "))
}

// Assess applies the severity rules. Missing values never trigger a rule.
// ESI, recent admissions and age bucket are read from the record, falling back to the vitals.
func Assess(v domain.Vitals, rec domain.PatientRecord, t Thresholds) Assessment {
	criticalVitals := lt(v.OxygenSaturation, t.CriticalSpO2) ||
		lt(v.BPSystolic, t.CriticalSystolic) ||
		gt(v.RespRate, t.CriticalRespHigh) ||
		lt(v.RespRate, t.CriticalRespLow)

	esi := rec.ESI
	if esi == nil {
		esi = v.ESI
	}
	criticalESI := esi != nil && *esi <= t.CriticalESI

	recent := rec.RecentAdmissions30d
	if recent == 0 && v.RecentAdmissions != nil {
		recent = *v.RecentAdmissions
	}
	highReadmission := recent >= t.ReadmissionCount

	ageBucket := rec.AgeBucket
	if ageBucket == "" {
		ageBucket = domain.Deref(v.AgeBucket)
	}
	elderlyRisk := ageBucket == t.ElderlyAgeBucket &&
		(gt(v.HeartRate, t.ElderlyHeartRate) ||
			gt(v.TemperatureC, t.ElderlyTemperatureC) ||
			lt(v.OxygenSaturation, t.ElderlySpO2))

	if !criticalVitals && !criticalESI && !(highReadmission && elderlyRisk) {
		return Assessment{}
	}

	var reasons []string
	if criticalVitals {
		reasons = append(reasons, "Critical vitals")
	}
	if criticalESI {
		reasons = append(reasons, fmt.Sprintf("ESI level %d", *esi))
	}
	if highReadmission {
		reasons = append(reasons, fmt.Sprintf("%d recent admissions", recent))
	}
	if elderlyRisk {
		reasons = append(reasons, "Elderly with concerning vitals")
	}
	return Assessment{Severe: true, Reasons: reasons}
}

// SeverityRoute maps the severity flag to the next branch. It never recomputes severity.
func SeverityRoute(s *domain.State) string {
	if s.IsSevere() {
		return domain.RouteTerminal
	}
	return domain.RouteContinue
}

func lt(v *float64, limit float64) bool {
	return v != nil && *v < limit
}

func gt(v *float64, limit float64) bool {
	return v != nil && *v > limit
}
