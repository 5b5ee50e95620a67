package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/pkg/domain"
)

// Report renders a run result as markdown for glamour.
func Report(res *triage.RunResult) string {
	if res == nil || res.State == nil {
		return "# Triage decision: UNKNOWN\n\nThe run produced no state.\n"
	}
	s := res.State

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Triage decision: %s\n\n", orDash(domain.Deref(s.FinalDecision)))
	fmt.Fprintf(&sb, "**Visit** %d · **Execution** `%s` · %.2fs\n\n", res.VisitID, res.ExecutionID, res.ElapsedSeconds)

	sb.WriteString("| Signal | Value |\n|---|---|\n")
	row := func(name, value string) {
		fmt.Fprintf(&sb, "| %s | %s |\n", name, value)
	}
	row("Structured model", prob(s.StructuredScore))
	row("Text model", prob(s.TextScore))
	row("Fused probability", prob(s.FusedProbability))
	row("Fusion decision", orDash(domain.Deref(s.FusionDecision)))
	row("Confidence route", orDash(domain.Deref(s.ConfidenceRoute)))
	row("Human review", orDash(domain.Deref(s.ReviewOutcome)))
	if s.HumanOverride != nil {
		row("Human override", prob(s.HumanOverride))
	}

	if s.IsSevere() {
		sb.WriteString("\n## Severity gate\n\n")
		for _, reason := range s.SeverityReasons {
			fmt.Fprintf(&sb, "- %s\n", reason)
		}
	}

	if r := domain.Deref(s.Rationale); r != "" {
		fmt.Fprintf(&sb, "\n## Rationale\n\n%s\n", r)
	}
	if r := domain.Deref(s.FusionRationale); r != "" && r != domain.Deref(s.Rationale) {
		fmt.Fprintf(&sb, "\n## Fusion rationale\n\n%s\n", r)
	}
	return sb.String()
}

func prob(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
