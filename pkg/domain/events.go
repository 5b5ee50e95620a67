package domain

import (
	"context"
	"time"
)

// AuditKind is the suffix of an audit event name.
type AuditKind string

const (
	AuditInput  AuditKind = "INPUT"
	AuditOutput AuditKind = "OUTPUT"
	AuditError  AuditKind = "ERROR"
)

// AuditRecord is one line of the trace log.
// Step is either "<node>_<KIND>" or a free-form event such as "human_review_override".
type AuditRecord struct {
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	Step        string         `json:"step"`
	Node        string         `json:"node,omitempty"`
	Kind        AuditKind      `json:"kind,omitempty"`
	Input       map[string]any `json:"input_state,omitempty"`
	Output      map[string]any `json:"output_state,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	DurationMS  *float64       `json:"duration_ms,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// ErrorRecord is one line of the error log, written for every failed attempt.
type ErrorRecord struct {
	Timestamp    time.Time      `json:"timestamp"`
	ExecutionID  string         `json:"execution_id"`
	Node         string         `json:"node"`
	Attempt      int            `json:"attempt"`
	ErrorType    string         `json:"error_type"`
	ErrorMessage string         `json:"error_message"`
	Stack        string         `json:"traceback,omitempty"`
	State        map[string]any `json:"state_snapshot,omitempty"`
}

// NodeEvent describes a node entering or leaving.
type NodeEvent struct {
	ExecutionID string
	VisitID     int64
	Node        string
	Attempts    int
	Duration    time.Duration
	Fallback    bool
	Err         error
}

// RouteEvent describes a conditional routing decision.
type RouteEvent struct {
	ExecutionID string
	Node        string
	Label       string
	Target      string
}

// RunEvent describes the start or end of a run.
type RunEvent struct {
	ExecutionID string
	VisitID     int64
	Decision    string
	Severe      bool
	Duration    time.Duration
	Err         error
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnRunStart  func(context.Context, *RunEvent)
	OnRunEnd    func(context.Context, *RunEvent)
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
	OnRoute     func(context.Context, *RouteEvent)
}

// ReviewRequest is what a human reviewer sees when confidence is low.
type ReviewRequest struct {
	ExecutionID      string   `json:"execution_id"`
	VisitID          int64    `json:"visit_id"`
	StructuredScore  *float64 `json:"structured_score,omitempty"`
	TextScore        *float64 `json:"text_score,omitempty"`
	FusedProbability *float64 `json:"fused_probability,omitempty"`
	FusionDecision   string   `json:"fusion_decision,omitempty"`
	FusionRationale  string   `json:"fusion_rationale,omitempty"`
	Reason           string   `json:"reason,omitempty"`
}
