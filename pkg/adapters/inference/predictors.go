package inference

import (
	"context"
	"fmt"

	"github.com/aretw0/triage/pkg/domain"
)

type probabilityResponse struct {
	Probability *float64 `json:"probability"`
}

func (r probabilityResponse) value(path string) (float64, error) {
	if r.Probability == nil {
		return 0, fmt.Errorf("%s: %w: response has no probability", path, domain.ErrParse)
	}
	return *r.Probability, nil
}

// StructuredPredictor posts the record to the structured model endpoint.
type StructuredPredictor struct {
	Client *Client
	Path   string
}

// NewStructuredPredictor uses the default endpoint path.
func NewStructuredPredictor(c *Client) *StructuredPredictor {
	return &StructuredPredictor{Client: c, Path: PathStructured}
}

func (p *StructuredPredictor) Predict(ctx context.Context, rec domain.PatientRecord) (float64, error) {
	var resp probabilityResponse
	if err := p.Client.post(ctx, p.Path, map[string]any{"record": rec}, &resp); err != nil {
		return 0, err
	}
	return resp.value(p.Path)
}

// TextPredictor posts the formatted text to the classifier endpoint.
type TextPredictor struct {
	Client *Client
	Path   string
}

// NewTextPredictor uses the default endpoint path.
func NewTextPredictor(c *Client) *TextPredictor {
	return &TextPredictor{Client: c, Path: PathText}
}

func (p *TextPredictor) Predict(ctx context.Context, text string) (float64, error) {
	var resp probabilityResponse
	if err := p.Client.post(ctx, p.Path, map[string]any{"text": text}, &resp); err != nil {
		return 0, err
	}
	return resp.value(p.Path)
}

// GenerationParams are the sampling settings sent with every prompt.
type GenerationParams struct {
	MaxNewTokens int     `json:"max_new_tokens" yaml:"max_new_tokens"`
	Temperature  float64 `json:"temperature" yaml:"temperature"`
	TopP         float64 `json:"top_p" yaml:"top_p"`
}

// DefaultGenerationParams match the settings the fusion prompt was tuned with.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{MaxNewTokens: 200, Temperature: 0.3, TopP: 0.9}
}

// FusionGenerator posts the prompt to a text generation endpoint.
type FusionGenerator struct {
	Client *Client
	Path   string
	Params GenerationParams
}

// NewFusionGenerator uses the default endpoint path and sampling settings.
func NewFusionGenerator(c *Client) *FusionGenerator {
	return &FusionGenerator{Client: c, Path: PathGenerate, Params: DefaultGenerationParams()}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	GenerationParams
}

// generateResponse accepts the field names used by common generation servers.
type generateResponse struct {
	Text          string `json:"text"`
	Response      string `json:"response"`
	GeneratedText string `json:"generated_text"`
}

func (g *FusionGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var resp generateResponse
	if err := g.Client.post(ctx, g.Path, generateRequest{Prompt: prompt, GenerationParams: g.Params}, &resp); err != nil {
		return "", err
	}
	for _, s := range []string{resp.Text, resp.Response, resp.GeneratedText} {
		if s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("%s: %w: empty generation", g.Path, domain.ErrParse)
}
