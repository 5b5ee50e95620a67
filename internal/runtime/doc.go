// Package runtime executes a triage graph: it wraps every node with auditing, retries and
// safe-default substitution, follows unconditional edges and routed branches, and runs
// fan-out branches concurrently before joining them.
package runtime
