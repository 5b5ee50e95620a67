package process

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
)

// probabilityKeys are the JSON fields accepted as a model score, in lookup order.
var probabilityKeys = []string{"probability", "admission_probability", "score", "p"}

// StructuredPredictor runs the structured model tool with the record as JSON on stdin.
type StructuredPredictor struct {
	Runner *Runner
	Tool   string
}

// NewStructuredPredictor uses the default tool name.
func NewStructuredPredictor(r *Runner) *StructuredPredictor {
	return &StructuredPredictor{Runner: r, Tool: ToolStructured}
}

func (p *StructuredPredictor) Predict(ctx context.Context, rec domain.PatientRecord) (float64, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	out, err := p.Runner.Run(ctx, p.Tool, map[string]any{"visit_id": rec.VisitID}, payload)
	if err != nil {
		return 0, err
	}
	return ParseProbability(out)
}

// TextPredictor runs the text classifier tool with the formatted text on stdin.
type TextPredictor struct {
	Runner *Runner
	Tool   string
}

// NewTextPredictor uses the default tool name.
func NewTextPredictor(r *Runner) *TextPredictor {
	return &TextPredictor{Runner: r, Tool: ToolText}
}

func (p *TextPredictor) Predict(ctx context.Context, text string) (float64, error) {
	out, err := p.Runner.Run(ctx, p.Tool, nil, []byte(text))
	if err != nil {
		return 0, err
	}
	return ParseProbability(out)
}

// FusionGenerator runs the generative tool with the prompt on stdin and returns its raw output.
type FusionGenerator struct {
	Runner *Runner
	Tool   string
}

// NewFusionGenerator uses the default tool name.
func NewFusionGenerator(r *Runner) *FusionGenerator {
	return &FusionGenerator{Runner: r, Tool: ToolFusion}
}

func (g *FusionGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.Runner.Run(ctx, g.Tool, nil, []byte(prompt))
}

// ParseProbability reads a score printed either as a bare number or as a JSON object.
func ParseProbability(out string) (float64, error) {
	out = strings.TrimSpace(out)
	if f, err := strconv.ParseFloat(out, 64); err == nil {
		return f, nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(out), &obj); err == nil {
		for _, k := range probabilityKeys {
			switch v := obj[k].(type) {
			case float64:
				return v, nil
			case string:
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					return f, nil
				}
			}
		}
	}
	return 0, fmt.Errorf("%w: no probability in model output %q", domain.ErrParse, truncate(out, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
