/*
Package ports defines the driven ports (interfaces) for the triage engine.

These interfaces decouple the workflow from the collaborators it depends on, allowing
the engine to run against SQLite or in-memory records, HTTP or subprocess predictors,
and file, Redis or in-memory audit and checkpoint backends.

# Key Interfaces

  - RecordResolver: Loads the patient record and vitals for a visit.
  - StructuredPredictor, TextPredictor, FusionGenerator: The three signal sources.
  - AuditSink: Receives the append-only trace and error logs.
  - CheckpointStore: Persists the terminal state of a run, keyed by execution id.
  - DistributedLocker: Serialises concurrent runs of the same visit.
  - Reviewer: Optional human-in-the-loop source of an override probability.
*/
package ports
