// Package workflow defines the triage nodes and wires them into the execution graph:
//
//	fetch_data -> severity_gate -[terminal]-> END
//	                            -[continue]-> run_models -> {structured_predictor, text_predictor, human_acknowledgment}
//	-> fusion -> confidence_check -[high_confidence]-> finalize -> END
//	                              -[low_confidence]-> human_review -> finalize
package workflow
