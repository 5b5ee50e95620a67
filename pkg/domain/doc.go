/*
Package domain contains the core models of the admission triage workflow.

It defines the encounter state threaded through the execution graph, the typed
patches nodes return, the patient record and vitals produced by the record
resolver, the audit records the engine emits, and the error taxonomy. This
package is kept free of I/O so that every other layer can depend on it.

# Key Entities

  - State: the append-only encounter state for a single run.
  - Patch: the partial state a node returns; merged by the engine with State.Apply.
  - PatientRecord / Vitals: the resolved encounter data.
  - AuditRecord / ErrorRecord: what the engine writes to the audit sink.
*/
package domain
