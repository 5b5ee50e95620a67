package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
)

// Mask replaces every matched fragment of free text.
const Mask = "***"

// DefaultPIIPatterns match identifiers that commonly leak into clinician notes.
var DefaultPIIPatterns = []string{
	`\b\d{3}-\d{2}-\d{4}\b`,                          // SSN
	`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`, // email
	`\(?\b\d{3}\)?[-. ]\d{3}[-. ]\d{4}\b`,            // phone
	`(?i)\bMRN[:#]?\s*\d+\b`,                         // medical record number
}

type piiMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks fragments of free text matching the patterns.
// Structured fields (scores, vitals, decisions) are stored untouched.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, executionID string, state *domain.State) error {
	// Clone so the caller's state keeps the original text.
	cloned := state.Clone()

	cloned.HumanNote = m.mask(cloned.HumanNote)
	if cloned.Record != nil {
		cloned.Record.TriageNote = m.mask(cloned.Record.TriageNote)
	}
	maskPtr(cloned.FusionRationale, m.mask)
	maskPtr(cloned.Rationale, m.mask)

	return m.next.Save(ctx, executionID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, executionID string) (*domain.State, error) {
	return m.next.Load(ctx, executionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, executionID string) error {
	return m.next.Delete(ctx, executionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(text string) string {
	for _, p := range m.patterns {
		text = p.ReplaceAllString(text, Mask)
	}
	return text
}

func maskPtr(s *string, mask func(string) string) {
	if s != nil {
		*s = mask(*s)
	}
}
