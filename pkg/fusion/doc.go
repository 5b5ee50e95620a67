// Package fusion combines the structured score, the text score and the human note into one
// admission decision.
//
// The generative predictor is asked for a JSON verdict, parsed through an ordered list of
// strategies (see DefaultStrategies). Whatever happens to the predictor, Fuse always computes
// the weighted-average probability and falls back to it when no usable verdict is produced.
package fusion
