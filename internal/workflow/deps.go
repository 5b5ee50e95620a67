package workflow

import (
	"time"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/fusion"
	"github.com/aretw0/triage/pkg/policy"
	"github.com/aretw0/triage/pkg/ports"
)

// Retry is the retry policy of one node.
type Retry struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	Delay      time.Duration `yaml:"delay" json:"delay"`
}

// DefaultRetries returns the per-node retry budget. Model nodes retry once; everything else
// runs a single attempt.
func DefaultRetries() map[string]Retry {
	return map[string]Retry{
		domain.NodeFetchData:           {},
		domain.NodeSeverityGate:        {},
		domain.NodeRunModels:           {},
		domain.NodeStructuredPredictor: {MaxRetries: 1, Delay: 500 * time.Millisecond},
		domain.NodeTextPredictor:       {MaxRetries: 1, Delay: 500 * time.Millisecond},
		domain.NodeHumanAcknowledgment: {},
		domain.NodeFusion:              {MaxRetries: 1, Delay: time.Second},
		domain.NodeConfidenceCheck:     {},
		domain.NodeHumanReview:         {},
		domain.NodeFinalize:            {},
	}
}

// Deps are the collaborators the nodes call.
type Deps struct {
	Resolver   ports.RecordResolver
	Structured ports.StructuredPredictor
	Text       ports.TextPredictor
	Agent      *fusion.Agent
	Thresholds policy.Thresholds
	Retries    map[string]Retry

	// Reviewer is consulted on low confidence when the run carries no override. Optional.
	Reviewer ports.Reviewer
}

func (d Deps) retry(node string) Retry {
	if r, ok := d.Retries[node]; ok {
		return r
	}
	return DefaultRetries()[node]
}
