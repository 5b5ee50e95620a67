/*
Package triage is an admit/discharge decision engine for emergency department visits.

A run takes one visit identifier through a fixed graph of nodes. Each node reads the
shared state, returns a partial update, and the engine merges the updates between steps.

# Workflow

	fetch_data -> severity_gate -> run_models -> {structured_predictor, text_predictor, human_acknowledgment}
	    -> fusion -> confidence_check -> [human_review] -> finalize

The severity gate applies deterministic clinical rules (critical vitals, ESI 1 or 2) and
ends the run with the decision "Admit" when any of them fires. Otherwise the two predictors score the
visit in parallel, the fusion agent combines the scores into one probability, and cases
inside the uncertainty band are sent to a reviewer before the decision is finalized.

# Reliability

Every node runs with a retry budget and linear backoff. Non-critical nodes fall back to
safe defaults when the budget is exhausted; critical nodes fail the run with a
*domain.NodeError naming the node. Every node entry, exit and failure is written to the
configured audit sink, and the merged final state is saved to the checkpoint store.

# Usage

	eng, err := triage.New(
		triage.WithRecordResolver(resolver),
		triage.WithStructuredPredictor(structured),
		triage.WithTextPredictor(text),
		triage.WithCheckpointStore(memory.NewStore()),
	)
	if err != nil {
		return err
	}
	res, err := eng.Run(ctx, triage.RunRequest{VisitID: 1001})

The cmd/triage binary wires the engine from a YAML file and TRIAGE_* variables, and
exposes it as a CLI, an HTTP API and an MCP server.
*/
package triage
