package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
)

// Verdict is what the generative predictor concluded, after normalisation.
type Verdict struct {
	Decision  string
	Rationale string
	Attempts  int
	Strategy  string
	Inferred  bool
}

// Failed reports whether no usable verdict was produced.
func (v Verdict) Failed() bool {
	return v.Decision == domain.DecisionError
}

// DefaultMaxRetries is the extra generator calls allowed after a parse failure.
const DefaultMaxRetries = 2

// Agent drives the generative predictor with a bounded retry budget.
type Agent struct {
	gen         ports.FusionGenerator
	maxRetries  int
	inferCutoff float64
	strategies  []Strategy
	logger      *slog.Logger
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithMaxRetries sets the number of extra attempts after the first one.
func WithMaxRetries(n int) AgentOption {
	return func(a *Agent) {
		if n >= 0 {
			a.maxRetries = n
		}
	}
}

// WithInferCutoff sets the score above which an unclear verdict is read as Admit.
func WithInferCutoff(c float64) AgentOption {
	return func(a *Agent) {
		a.inferCutoff = c
	}
}

// WithStrategies replaces the parser strategy list.
func WithStrategies(s []Strategy) AgentOption {
	return func(a *Agent) {
		a.strategies = s
	}
}

// WithAgentLogger sets the logger used for per-attempt warnings.
func WithAgentLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAgent creates an Agent. A nil generator yields an agent that always fails.
func NewAgent(gen ports.FusionGenerator, opts ...AgentOption) *Agent {
	a := &Agent{
		gen:         gen,
		maxRetries:  DefaultMaxRetries,
		inferCutoff: 0.7,
		strategies:  DefaultStrategies,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Decide asks the generator for a verdict. It never returns a Go error for predictor
// problems: those produce an "Error" verdict plus the joined attempt errors.
func (a *Agent) Decide(ctx context.Context, structured, text float64, note string) (Verdict, error) {
	if a == nil || a.gen == nil {
		return Verdict{
			Decision:  domain.DecisionError,
			Rationale: "No fusion generator configured. Using weighted average fallback.",
		}, errors.New("no fusion generator configured")
	}

	prompt := BuildPrompt(structured, text, note)
	var errs []error
	attempts := 0

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		attempts++

		raw, err := a.gen.Generate(ctx, prompt)
		if err != nil {
			a.logger.Warn("fusion generator failed", "attempt", attempt+1, "error", err)
			errs = append(errs, fmt.Errorf("attempt %d: %w", attempt+1, err))
			continue
		}

		obj, strategy, ok := Parse(raw, a.strategies)
		if !ok {
			a.logger.Warn("fusion output unparsable", "attempt", attempt+1, "raw", truncate(raw, 300))
			errs = append(errs, fmt.Errorf("attempt %d: %w", attempt+1, domain.ErrParse))
			prompt = Tighten(prompt)
			continue
		}

		rawDecision, hasDecision := obj["decision"]
		if !hasDecision {
			a.logger.Warn("fusion output missing decision", "attempt", attempt+1, "keys", keys(obj))
			errs = append(errs, fmt.Errorf("attempt %d: missing decision: %w", attempt+1, domain.ErrParse))
			continue
		}

		v := Verdict{Attempts: attempts, Strategy: strategy}
		if d, ok := NormalizeDecision(fmt.Sprint(rawDecision)); ok {
			v.Decision = d
		} else {
			a.logger.Warn("unrecognized fusion decision, inferring from scores", "decision", rawDecision)
			v.Decision = InferDecision(structured, text, a.inferCutoff)
			v.Inferred = true
		}

		if r, ok := obj["rationale"].(string); ok && r != "" {
			v.Rationale = r
		} else {
			v.Rationale = fmt.Sprintf("Based on structured probability %.2f and text probability %.2f, decision: %s.",
				structured, text, v.Decision)
		}
		return v, nil
	}

	return Verdict{
		Decision:  domain.DecisionError,
		Rationale: fmt.Sprintf("Fusion agent failed after %d attempts. Using weighted average fallback.", attempts),
		Attempts:  attempts,
	}, errors.Join(errs...)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
