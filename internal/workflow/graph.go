package workflow

import (
	"github.com/aretw0/triage/internal/runtime"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/policy"
)

// Build wires the triage nodes into a validated graph.
func Build(deps Deps) (*runtime.Graph, error) {
	n := &nodes{deps: deps}
	th := deps.Thresholds

	spec := func(name string) runtime.NodeSpec {
		r := deps.retry(name)
		return runtime.NodeSpec{
			Name:       name,
			MaxRetries: r.MaxRetries,
			RetryDelay: r.Delay,
			Critical:   CriticalNodes[name],
			Requires:   Requirements[name],
		}
	}

	return runtime.NewBuilder().
		Node(spec(domain.NodeFetchData), n.fetchData).
		Node(spec(domain.NodeSeverityGate), n.severityGate).
		Node(spec(domain.NodeRunModels), n.runModels).
		Node(spec(domain.NodeStructuredPredictor), n.structuredPredictor).
		Node(spec(domain.NodeTextPredictor), n.textPredictor).
		Node(spec(domain.NodeHumanAcknowledgment), n.humanAcknowledgment).
		Node(spec(domain.NodeFusion), n.fusion).
		Node(spec(domain.NodeConfidenceCheck), n.confidenceCheck).
		Node(spec(domain.NodeHumanReview), n.humanReview).
		Node(spec(domain.NodeFinalize), n.finalize).
		Edge(domain.NodeFetchData, domain.NodeSeverityGate).
		Branch(domain.NodeSeverityGate, policy.SeverityRoute, map[string]string{
			domain.RouteTerminal: runtime.End,
			domain.RouteContinue: domain.NodeRunModels,
		}).
		Edge(domain.NodeRunModels, domain.NodeStructuredPredictor, domain.NodeTextPredictor, domain.NodeHumanAcknowledgment).
		Edge(domain.NodeStructuredPredictor, domain.NodeFusion).
		Edge(domain.NodeTextPredictor, domain.NodeFusion).
		Edge(domain.NodeHumanAcknowledgment, domain.NodeFusion).
		Edge(domain.NodeFusion, domain.NodeConfidenceCheck).
		Branch(domain.NodeConfidenceCheck, ConfidenceRouter(th), map[string]string{
			domain.RouteHighConfidence: domain.NodeFinalize,
			domain.RouteLowConfidence:  domain.NodeHumanReview,
		}).
		Edge(domain.NodeHumanReview, domain.NodeFinalize).
		Edge(domain.NodeFinalize, runtime.End).
		Build()
}

// ConfidenceRouter reads the label stored by confidence_check, recomputing it when that node
// degraded to its safe default.
func ConfidenceRouter(th policy.Thresholds) runtime.Router {
	return func(s *domain.State) string {
		if s.ConfidenceRoute != nil {
			return *s.ConfidenceRoute
		}
		return policy.ConfidenceRoute(s, th).Label
	}
}
