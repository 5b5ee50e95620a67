package fusion

import (
	"context"
	"fmt"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/policy"
)

// Input carries the three signals plus the patient context.
type Input struct {
	Structured float64
	Text       float64
	Note       string
	Record     *domain.PatientRecord
}

// Result is the outcome of the fusion step.
type Result struct {
	Probability float64
	Decision    string
	Rationale   string
	Fallback    bool
	Verdict     Verdict
	// Err holds the generator failures when the fallback was used.
	Err error
}

// WeightedAverage is the numeric fallback law. Inputs are clamped to [0,1].
func WeightedAverage(structured, text float64) float64 {
	s, _ := policy.Clamp(structured)
	t, _ := policy.Clamp(text)
	return 0.5*s + 0.5*t
}

// Fuse computes the fused probability and a categorical decision.
// The probability is always the weighted average; the agent only contributes the decision
// and rationale, and a failed agent is replaced by thresholding the average.
func Fuse(ctx context.Context, agent *Agent, in Input, admissionThreshold float64) Result {
	structured, _ := policy.Clamp(in.Structured)
	text, _ := policy.Clamp(in.Text)

	verdict, err := agent.Decide(ctx, structured, text, AnnotateNote(in.Note, in.Record))
	fused := WeightedAverage(structured, text)

	res := Result{
		Probability: fused,
		Decision:    verdict.Decision,
		Rationale:   verdict.Rationale,
		Verdict:     verdict,
	}
	if verdict.Failed() {
		res.Fallback = true
		res.Err = err
		res.Decision = ThresholdDecision(fused, admissionThreshold)
		res.Rationale = FallbackRationale(fused, res.Decision)
	}
	return res
}

// ThresholdDecision maps a probability to Admit (>= threshold) or Discharge.
func ThresholdDecision(p, threshold float64) string {
	if p >= threshold {
		return domain.DecisionAdmit
	}
	return domain.DecisionDischarge
}

// FallbackRationale explains a decision taken from the weighted average.
func FallbackRationale(fused float64, decision string) string {
	return fmt.Sprintf("Fusion agent unavailable. Using weighted average (0.5*structured + 0.5*text) = %.3f. Decision: %s.", fused, decision)
}
