package workflow

import (
	"fmt"

	"github.com/aretw0/triage/pkg/domain"
)

// NeutralProbability is substituted for a missing model signal.
const NeutralProbability = 0.5

// CriticalNodes abort the run when they exhaust their retries.
var CriticalNodes = map[string]bool{
	domain.NodeFetchData:    true,
	domain.NodeSeverityGate: true,
}

// SafeDefault returns the neutral patch for a non-critical node that failed.
func SafeDefault(node string, s *domain.State) domain.Patch {
	prior, ok := s.Probability()
	if !ok {
		prior = NeutralProbability
	}

	switch node {
	case domain.NodeStructuredPredictor:
		return domain.Patch{StructuredScore: domain.Ptr(NeutralProbability)}
	case domain.NodeTextPredictor:
		return domain.Patch{TextScore: domain.Ptr(NeutralProbability)}
	case domain.NodeFusion:
		return domain.Patch{
			FusedProbability: domain.Ptr(NeutralProbability),
			PFinal:           domain.Ptr(NeutralProbability),
			FusionDecision:   domain.Ptr(domain.DecisionError),
			FusionRationale:  domain.Ptr("Fusion failed, using default neutral probability."),
		}
	case domain.NodeHumanReview:
		return domain.Patch{
			FusedProbability: domain.Ptr(prior),
			PFinal:           domain.Ptr(prior),
		}
	case domain.NodeFinalize:
		return domain.Patch{
			FinalDecision: domain.Ptr(domain.FinalUnknown),
			Decision:      domain.Ptr(domain.FinalUnknown),
			Rationale:     domain.Ptr(fmt.Sprintf("Workflow encountered errors. Node %s failed.", node)),
			PFinal:        domain.Ptr(prior),
		}
	default:
		return domain.Patch{}
	}
}

// Requirements lists the state each node needs before it can run.
var Requirements = map[string]func(s *domain.State) error{
	domain.NodeFetchData: func(s *domain.State) error {
		if s.VisitID <= 0 {
			return &domain.ValidationError{Node: domain.NodeFetchData, Field: "visit_id", Message: fmt.Sprintf("must be a positive integer, got %d", s.VisitID)}
		}
		return nil
	},
	domain.NodeSeverityGate:        requireVitals(domain.NodeSeverityGate),
	domain.NodeStructuredPredictor: requireRecord(domain.NodeStructuredPredictor),
	domain.NodeTextPredictor:       requireRecord(domain.NodeTextPredictor),
}

func requireVitals(node string) func(*domain.State) error {
	return func(s *domain.State) error {
		if s.Vitals == nil {
			return &domain.ValidationError{Node: node, Field: "vitals", Message: "missing required state key"}
		}
		return nil
	}
}

func requireRecord(node string) func(*domain.State) error {
	return func(s *domain.State) error {
		if s.Record == nil {
			return &domain.ValidationError{Node: node, Field: "patient_record", Message: "missing required state key"}
		}
		return nil
	}
}
