package policy

import (
	"errors"
	"fmt"
	"math"
)

// Thresholds groups every clinical cut-off used by the workflow.
type Thresholds struct {
	// Severity gate.
	CriticalSpO2        float64 `yaml:"critical_spo2" json:"critical_spo2"`
	CriticalSystolic    float64 `yaml:"critical_systolic" json:"critical_systolic"`
	CriticalRespHigh    float64 `yaml:"critical_resp_high" json:"critical_resp_high"`
	CriticalRespLow     float64 `yaml:"critical_resp_low" json:"critical_resp_low"`
	CriticalESI         int     `yaml:"critical_esi" json:"critical_esi"`
	ReadmissionCount    int     `yaml:"readmission_count" json:"readmission_count"`
	ElderlyAgeBucket    string  `yaml:"elderly_age_bucket" json:"elderly_age_bucket"`
	ElderlyHeartRate    float64 `yaml:"elderly_heart_rate" json:"elderly_heart_rate"`
	ElderlyTemperatureC float64 `yaml:"elderly_temperature_c" json:"elderly_temperature_c"`
	ElderlySpO2         float64 `yaml:"elderly_spo2" json:"elderly_spo2"`

	// Confidence routing.
	HighRiskCutoff float64 `yaml:"high_risk_cutoff" json:"high_risk_cutoff"`
	HighRiskMaxGap float64 `yaml:"high_risk_max_gap" json:"high_risk_max_gap"`
	HighRiskMinAvg float64 `yaml:"high_risk_min_avg" json:"high_risk_min_avg"`
	LowRiskMaxGap  float64 `yaml:"low_risk_max_gap" json:"low_risk_max_gap"`
	LowRiskMinAvg  float64 `yaml:"low_risk_min_avg" json:"low_risk_min_avg"`

	// AdmissionThreshold turns a probability into ADMIT (>=) or DISCHARGE.
	AdmissionThreshold float64 `yaml:"admission_threshold" json:"admission_threshold"`

	// InferAdmitScore is the per-signal score above which an unclear fusion verdict is read as Admit.
	InferAdmitScore float64 `yaml:"infer_admit_score" json:"infer_admit_score"`
}

// DefaultThresholds returns the clinically reviewed defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalSpO2:        88,
		CriticalSystolic:    80,
		CriticalRespHigh:    35,
		CriticalRespLow:     8,
		CriticalESI:         2,
		ReadmissionCount:    2,
		ElderlyAgeBucket:    "65+",
		ElderlyHeartRate:    100,
		ElderlyTemperatureC: 38.5,
		ElderlySpO2:         92,

		HighRiskCutoff: 0.5,
		HighRiskMaxGap: 0.15,
		HighRiskMinAvg: 0.65,
		LowRiskMaxGap:  0.25,
		LowRiskMinAvg:  0.75,

		AdmissionThreshold: 0.5,
		InferAdmitScore:    0.7,
	}
}

// Validate checks that probability cut-offs are in [0,1].
func (t Thresholds) Validate() error {
	var errs []error
	probs := []struct {
		name  string
		value float64
	}{
		{"high_risk_cutoff", t.HighRiskCutoff},
		{"high_risk_max_gap", t.HighRiskMaxGap},
		{"high_risk_min_avg", t.HighRiskMinAvg},
		{"low_risk_max_gap", t.LowRiskMaxGap},
		{"low_risk_min_avg", t.LowRiskMinAvg},
		{"admission_threshold", t.AdmissionThreshold},
		{"infer_admit_score", t.InferAdmitScore},
	}
	for _, p := range probs {
		if p.value < 0 || p.value > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %v", p.name, p.value))
		}
	}
	if t.CriticalRespLow >= t.CriticalRespHigh {
		errs = append(errs, fmt.Errorf("critical_resp_low (%v) must be below critical_resp_high (%v)", t.CriticalRespLow, t.CriticalRespHigh))
	}
	if t.CriticalESI < 0 || t.CriticalESI > 5 {
		errs = append(errs, fmt.Errorf("critical_esi must be in [0,5], got %d", t.CriticalESI))
	}
	return errors.Join(errs...)
}

// Clamp restricts p to [0,1]. It reports whether p was out of range.
func Clamp(p float64) (float64, bool) {
	switch {
	case math.IsNaN(p):
		return 0.5, true
	case p < 0:
		return 0, true
	case p > 1:
		return 1, true
	default:
		return p, false
	}
}
