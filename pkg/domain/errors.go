package domain

import (
	"errors"
	"fmt"
)

// ErrVisitNotFound is returned by a RecordResolver when no encounter matches the visit id.
var ErrVisitNotFound = errors.New("visit not found")

// ErrTransient marks collaborator failures (network, subprocess, database) that may succeed on retry.
var ErrTransient = errors.New("transient collaborator failure")

// ErrParse is returned when generative fusion output cannot be parsed into a decision.
var ErrParse = errors.New("unparsable fusion output")

// ErrCheckpointNotFound is returned when an execution id has no stored checkpoint.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// ErrLocked is returned when a visit is already being triaged by another run.
var ErrLocked = errors.New("visit is locked by another run")

// ValidationError reports malformed input or missing required state keys.
type ValidationError struct {
	Node    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Node != "" && e.Field != "":
		return fmt.Sprintf("validation failed at %s: %s: %s", e.Node, e.Field, e.Message)
	case e.Node != "":
		return fmt.Sprintf("validation failed at %s: %s", e.Node, e.Message)
	case e.Field != "":
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	default:
		return "validation failed: " + e.Message
	}
}

// NodeError is returned when a node exhausts its retries.
// Only critical nodes surface it to the caller; the rest fall back to a safe default.
type NodeError struct {
	Node     string
	Attempts int
	Critical bool
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed after %d attempt(s): %v", e.Node, e.Attempts, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
