package ports

import (
	"context"

	"github.com/aretw0/triage/pkg/domain"
)

// StructuredPredictor scores the tabular record. The result is P(admit) in [0,1].
type StructuredPredictor interface {
	Predict(ctx context.Context, record domain.PatientRecord) (float64, error)
}

// TextPredictor scores the rendered record text. The result is P(admit) in [0,1].
type TextPredictor interface {
	Predict(ctx context.Context, text string) (float64, error)
}

// FusionGenerator produces a free-form (ideally JSON) decision from a prompt.
type FusionGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StructuredPredictorFunc adapts a function to StructuredPredictor.
type StructuredPredictorFunc func(ctx context.Context, record domain.PatientRecord) (float64, error)

func (f StructuredPredictorFunc) Predict(ctx context.Context, record domain.PatientRecord) (float64, error) {
	return f(ctx, record)
}

// TextPredictorFunc adapts a function to TextPredictor.
type TextPredictorFunc func(ctx context.Context, text string) (float64, error)

func (f TextPredictorFunc) Predict(ctx context.Context, text string) (float64, error) {
	return f(ctx, text)
}

// FusionGeneratorFunc adapts a function to FusionGenerator.
type FusionGeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f FusionGeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Reviewer supplies a human override probability when confidence is low.
// A nil probability means the reviewer accepted the fused value.
type Reviewer interface {
	Review(ctx context.Context, req domain.ReviewRequest) (*float64, error)
}

// ReviewerFunc adapts a function to Reviewer.
type ReviewerFunc func(ctx context.Context, req domain.ReviewRequest) (*float64, error)

func (f ReviewerFunc) Review(ctx context.Context, req domain.ReviewRequest) (*float64, error) {
	return f(ctx, req)
}
