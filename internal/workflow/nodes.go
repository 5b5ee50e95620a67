package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/triage/internal/runtime"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/fusion"
	"github.com/aretw0/triage/pkg/policy"
)

type nodes struct {
	deps Deps
}

func (n *nodes) fetchData(ctx context.Context, rc *runtime.RunContext, s *domain.State) (domain.Patch, error) {
	if n.deps.Resolver == nil {
		return domain.Patch{}, fmt.Errorf("no record resolver configured")
	}
	res, err := n.deps.Resolver.Resolve(ctx, s.VisitID)
	if err != nil {
		return domain.Patch{}, fmt.Errorf("resolve visit %d: %w", s.VisitID, err)
	}
	if res == nil {
		return domain.Patch{}, fmt.Errorf("resolve visit %d: %w", s.VisitID, domain.ErrVisitNotFound)
	}

	rec := res.Record.Clone()
	if rec.VisitID == 0 {
		rec.VisitID = s.VisitID
	}
	if rec.Temporal == nil {
		if tf, ok := domain.ExtractTemporalFeatures(rec.AdmissionDate); ok {
			rec.Temporal = tf
		} else if rec.AdmissionDate != "" {
			rc.Logger().Warn("unrecognized admission date", "admission_date", rec.AdmissionDate)
		}
	}
	vitals := res.Vitals.Clone()

	rc.Logger().Info("patient record resolved", "historical_visits", rec.HistoricalVisitCount)
	return domain.Patch{Record: &rec, Vitals: &vitals}, nil
}

func (n *nodes) severityGate(_ context.Context, rc *runtime.RunContext, s *domain.State) (domain.Patch, error) {
	var rec domain.PatientRecord
	if s.Record != nil {
		rec = *s.Record
	}
	a := policy.Assess(*s.Vitals, rec, n.deps.Thresholds)
	if !a.Severe {
		rc.Logger().Info("patient is not severe, proceeding to models")
		return domain.Patch{Severe: domain.Ptr(false)}, nil
	}

	rationale := a.Rationale()
	rc.Logger().Warn("severe patient, immediate admission", "reasons", strings.Join(a.Reasons, ", "))
	return domain.Patch{
		Severe:           domain.Ptr(true),
		SeverityReasons:  a.Reasons,
		FinalDecision:    domain.Ptr(domain.DecisionAdmit),
		Decision:         domain.Ptr(domain.DecisionAdmit),
		FusedProbability: domain.Ptr(1.0),
		PFinal:           domain.Ptr(1.0),
		Rationale:        &rationale,
	}, nil
}

func (n *nodes) runModels(_ context.Context, rc *runtime.RunContext, _ *domain.State) (domain.Patch, error) {
	rc.Logger().Debug("fanning out to predictors")
	return domain.Patch{}, nil
}

func (n *nodes) structuredPredictor(ctx context.Context, rc *runtime.RunContext, s *domain.State) (domain.Patch, error) {
	if n.deps.Structured == nil {
		return domain.Patch{}, fmt.Errorf("no structured predictor configured")
	}
	score, err := n.deps.Structured.Predict(ctx, *s.Record)
	if err != nil {
		return domain.Patch{}, fmt.Errorf("structured predictor: %w", err)
	}
	score = clampScore(rc, domain.NodeStructuredPredictor, score)
	return domain.Patch{StructuredScore: &score}, nil
}

func (n *nodes) textPredictor(ctx context.Context, rc *runtime.RunContext, s *domain.State) (domain.Patch, error) {
	if n.deps.Text == nil {
		return domain.Patch{}, fmt.Errorf("no text predictor configured")
	}
	text := domain.FormatForTextClassifier(*s.Record)
	if strings.TrimSpace(text) == "" {
		rc.Logger().Warn("empty classifier text, using placeholder")
		text = "No patient data available."
	}
	score, err := n.deps.Text.Predict(ctx, text)
	if err != nil {
		return domain.Patch{}, fmt.Errorf("text predictor: %w", err)
	}
	score = clampScore(rc, domain.NodeTextPredictor, score)
	return domain.Patch{TextScore: &score}, nil
}

func (n *nodes) humanAcknowledgment(_ context.Context, rc *runtime.RunContext, s *domain.State) (domain.Patch, error) {
	rc.Logger().Info("human note acknowledged", "note_length", len(s.HumanNote))
	return domain.Patch{}, nil
}

func (n *nodes) fusion(ctx context.Context, rc *runtime.RunContext, s *domain.State) (domain.Patch, error) {
	structured := scoreOrNeutral(rc, "structured_score", s.StructuredScore)
	text := scoreOrNeutral(rc, "text_score", s.TextScore)

	res := fusion.Fuse(ctx, n.deps.Agent, fusion.Input{
		Structured: structured,
		Text:       text,
		Note:       strings.TrimSpace(s.HumanNote),
		Record:     s.Record,
	}, n.deps.Thresholds.AdmissionThreshold)

	if res.Fallback {
		rc.Logger().Warn("fusion agent unavailable, using weighted average", "fused", res.Probability, "error", res.Err)
	} else {
		rc.Logger().Info("fusion verdict", "decision", res.Decision, "fused", res.Probability,
			"attempts", res.Verdict.Attempts, "strategy", res.Verdict.Strategy)
	}

	return domain.Patch{
		FusedProbability: domain.Ptr(res.Probability),
		PFinal:           domain.Ptr(res.Probability),
		FusionDecision:   domain.Ptr(res.Decision),
		FusionRationale:  domain.Ptr(res.Rationale),
	}, nil
}

func (n *nodes) confidenceCheck(_ context.Context, rc *runtime.RunContext, s *domain.State) (domain.Patch, error) {
	route := policy.ConfidenceRoute(s, n.deps.Thresholds)
	rc.Logger().Info("confidence assessed", "route", route.Label, "gap", route.Gap, "avg", route.Avg, "risk", route.Risk)
	return domain.Patch{ConfidenceRoute: domain.Ptr(route.Label)}, nil
}

func (n *nodes) humanReview(ctx context.Context, rc *runtime.RunContext, s *domain.State) (domain.Patch, error) {
	override := s.HumanOverride
	var fromReviewer bool
	if override == nil && n.deps.Reviewer != nil {
		v, err := n.deps.Reviewer.Review(ctx, reviewRequest(rc, s))
		if err != nil {
			rc.Logger().Warn("reviewer unavailable, keeping fused probability", "error", err)
		} else if v != nil {
			override = v
			fromReviewer = true
		}
	}

	if override != nil {
		p, clamped := policy.Clamp(*override)
		if clamped {
			rc.Logger().Warn("human override outside [0,1], clamped", "override", *override, "clamped", p)
		}
		out := domain.Patch{
			FusedProbability: domain.Ptr(p),
			PFinal:           domain.Ptr(p),
			ReviewOutcome:    domain.Ptr(domain.ReviewOverride),
		}
		if fromReviewer {
			out.HumanOverride = domain.Ptr(p)
		}
		rc.Record(ctx, "human_review_override", s, out, map[string]any{"override": p})
		rc.Logger().Info("human override applied", "fused", p)
		return out, nil
	}

	out := domain.Patch{ReviewOutcome: domain.Ptr(domain.ReviewNoOverride)}
	if prior, ok := s.Probability(); ok {
		out.FusedProbability = domain.Ptr(prior)
		out.PFinal = domain.Ptr(prior)
	}
	rc.Record(ctx, "human_review_no_override", s, out, nil)
	rc.Logger().Info("no override provided, keeping fused probability")
	return out, nil
}

func (n *nodes) finalize(_ context.Context, rc *runtime.RunContext, s *domain.State) (domain.Patch, error) {
	decision, rationale, p := Finalize(s, n.deps.Thresholds.AdmissionThreshold)
	rc.Logger().Info("final decision", "decision", decision)
	out := domain.Patch{
		FinalDecision: domain.Ptr(decision),
		Decision:      domain.Ptr(decision),
		Rationale:     domain.Ptr(rationale),
	}
	if p != nil {
		out.PFinal = p
	}
	return out, nil
}

// Finalize applies the decision precedence: no probability gives UNKNOWN, a clear fusion verdict
// wins, otherwise the probability is thresholded.
func Finalize(s *domain.State, threshold float64) (decision, rationale string, p *float64) {
	fused, ok := s.Probability()
	if !ok {
		return domain.FinalUnknown,
			"Missing fused probability; unable to generate a final decision. Check fusion or human review steps.",
			nil
	}

	verdict := domain.Deref(s.FusionDecision)
	if verdict != "" && verdict != domain.DecisionError {
		switch strings.ToLower(verdict) {
		case "admit", "admission":
			decision = domain.FinalAdmit
		case "discharge", "discharged":
			decision = domain.FinalDischarge
		default:
			decision = thresholdFinal(fused, threshold)
		}
		if r := strings.TrimSpace(domain.Deref(s.FusionRationale)); r != "" {
			rationale = fmt.Sprintf("Fusion agent decision: %s. %s", verdict, r)
		} else {
			rationale = fmt.Sprintf("Fusion agent decision: %s. Fused probability: %.2f.", verdict, fused)
		}
		return decision, rationale, &fused
	}

	decision = thresholdFinal(fused, threshold)
	if decision == domain.FinalAdmit {
		rationale = fmt.Sprintf("Fused probability %.2f ≥ threshold %.2f; patient should be admitted.", fused, threshold)
	} else {
		rationale = fmt.Sprintf("Fused probability %.2f < threshold %.2f; patient may be safely discharged.", fused, threshold)
	}
	return decision, rationale, &fused
}

func thresholdFinal(p, threshold float64) string {
	if p >= threshold {
		return domain.FinalAdmit
	}
	return domain.FinalDischarge
}

func clampScore(rc *runtime.RunContext, node string, score float64) float64 {
	p, clamped := policy.Clamp(score)
	if clamped {
		rc.Logger().Warn("predictor returned a score outside [0,1], clamped", "node", node, "score", score, "clamped", p)
	}
	return p
}

func scoreOrNeutral(rc *runtime.RunContext, field string, v *float64) float64 {
	if v == nil {
		rc.Logger().Warn("score missing, using neutral value", "field", field, "value", NeutralProbability)
		return NeutralProbability
	}
	return *v
}

func reviewRequest(rc *runtime.RunContext, s *domain.State) domain.ReviewRequest {
	return domain.ReviewRequest{
		ExecutionID:      rc.ExecutionID,
		VisitID:          s.VisitID,
		StructuredScore:  s.StructuredScore,
		TextScore:        s.TextScore,
		FusedProbability: s.FusedProbability,
		FusionDecision:   domain.Deref(s.FusionDecision),
		FusionRationale:  domain.Deref(s.FusionRationale),
		Reason:           domain.Deref(s.ConfidenceRoute),
	}
}
