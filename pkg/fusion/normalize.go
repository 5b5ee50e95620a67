package fusion

import (
	"fmt"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
)

var decisionSynonyms = map[string]string{
	"admit":       domain.DecisionAdmit,
	"admission":   domain.DecisionAdmit,
	"admitted":    domain.DecisionAdmit,
	"discharge":   domain.DecisionDischarge,
	"discharged":  domain.DecisionDischarge,
	"discharging": domain.DecisionDischarge,
}

// NormalizeDecision maps a free-form verdict to "Admit" or "Discharge".
func NormalizeDecision(raw string) (string, bool) {
	d, ok := decisionSynonyms[strings.ToLower(strings.TrimSpace(raw))]
	return d, ok
}

// InferDecision reads an unclear verdict from the scores: either one above cutoff means Admit.
func InferDecision(structured, text, cutoff float64) string {
	if structured > cutoff || text > cutoff {
		return domain.DecisionAdmit
	}
	return domain.DecisionDischarge
}

// ContextAnnotation summarises the patient history for the fusion prompt.
// It returns nil when nothing noteworthy is known.
func ContextAnnotation(rec *domain.PatientRecord) []string {
	if rec == nil {
		return nil
	}
	var parts []string
	if rec.RecentAdmissions30d > 0 {
		parts = append(parts, fmt.Sprintf("Patient has %d recent admission(s) in past 30 days", rec.RecentAdmissions30d))
	}
	if rate, ok := rec.HistoricalAdmissionRate(); ok {
		parts = append(parts, fmt.Sprintf("Historical admission rate: %.1f%% (%d/%d visits)",
			rate*100, rec.HistoricalAdmissionCount, rec.HistoricalVisitCount))
	}
	if rec.ESI != nil && *rec.ESI <= 2 {
		parts = append(parts, fmt.Sprintf("High acuity triage (ESI %d)", *rec.ESI))
	}
	return parts
}

// AnnotateNote appends the context annotation to the human note.
func AnnotateNote(note string, rec *domain.PatientRecord) string {
	parts := ContextAnnotation(rec)
	if len(parts) == 0 {
		return note
	}
	return fmt.Sprintf("%s [Context: %s]", note, strings.Join(parts, ". "))
}
