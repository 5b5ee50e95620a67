// Package policy holds the pure clinical routing rules of the triage workflow:
// the severity gate, the risk-adjusted confidence router and the patient risk scorer.
//
// Nothing in this package performs I/O. Every cut-off lives in Thresholds so it can be
// tuned through configuration without touching code.
package policy
