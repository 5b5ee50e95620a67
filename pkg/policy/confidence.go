package policy

import (
	"fmt"
	"math"

	"github.com/aretw0/triage/pkg/domain"
)

// Route is the outcome of the confidence check.
type Route struct {
	Label  string
	Gap    float64
	Avg    float64
	Risk   float64
	Reason string
}

// ConfidenceRoute decides whether the two model signals agree strongly enough to finalize
// without a human. Missing either score always escalates.
func ConfidenceRoute(s *domain.State, t Thresholds) Route {
	if s.StructuredScore == nil || s.TextScore == nil {
		return Route{Label: domain.RouteLowConfidence, Reason: "missing model scores"}
	}

	var rec domain.PatientRecord
	if s.Record != nil {
		rec = *s.Record
	}
	return ConfidenceFromScores(*s.StructuredScore, *s.TextScore, RiskScore(rec), t)
}

// ConfidenceFromScores applies the risk-adjusted agreement thresholds.
func ConfidenceFromScores(structured, text, risk float64, t Thresholds) Route {
	maxGap, minAvg := t.LowRiskMaxGap, t.LowRiskMinAvg
	if risk > t.HighRiskCutoff {
		maxGap, minAvg = t.HighRiskMaxGap, t.HighRiskMinAvg
	}

	r := Route{
		Gap:  math.Abs(structured - text),
		Avg:  (structured + text) / 2,
		Risk: risk,
	}
	if r.Gap < maxGap && r.Avg > minAvg {
		r.Label = domain.RouteHighConfidence
	} else {
		r.Label = domain.RouteLowConfidence
	}
	r.Reason = fmt.Sprintf("gap=%.2f avg=%.2f risk=%.2f (max_gap=%.2f min_avg=%.2f)", r.Gap, r.Avg, r.Risk, maxGap, minAvg)
	return r
}
