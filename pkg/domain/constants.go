package domain

// Node names of the triage graph. They double as audit step prefixes.
const (
	NodeFetchData           = "fetch_data"
	NodeSeverityGate        = "severity_gate"
	NodeRunModels           = "run_models"
	NodeStructuredPredictor = "structured_predictor"
	NodeTextPredictor       = "text_predictor"
	NodeHumanAcknowledgment = "human_acknowledgment"
	NodeFusion              = "fusion"
	NodeConfidenceCheck     = "confidence_check"
	NodeHumanReview         = "human_review"
	NodeFinalize            = "finalize"
)

// Route labels returned by the routing policy.
const (
	RouteTerminal       = "terminal"
	RouteContinue       = "continue"
	RouteHighConfidence = "high_confidence"
	RouteLowConfidence  = "low_confidence"
)

// Categorical verdicts of the fusion predictor.
// The severity gate writes DecisionAdmit as the final decision of a severe case.
const (
	DecisionAdmit     = "Admit"
	DecisionDischarge = "Discharge"
	DecisionError     = "Error"
)

// Terminal decisions written by the finalize node.
const (
	FinalAdmit     = "ADMIT"
	FinalDischarge = "DISCHARGE"
	FinalUnknown   = "UNKNOWN"
)

// Review outcomes recorded by the human review node.
const (
	ReviewOverride   = "override"
	ReviewNoOverride = "no_override"
)

// OldestAgeBucket is the age cohort treated as elderly by severity and risk scoring.
const OldestAgeBucket = "65+"
