package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for the triage CLI.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{" _____     _                 ", "#818cf8"},
		{"|_   _| __(_) __ _  __ _  ___ ", "#a78bfa"},
		{"  | || '__| |/ _` |/ _` |/ _ \\", "#c084fc"},
		{"  | || |  | | (_| | (_| |  __/", "#e879f9"},
		{"  |_||_|  |_|\\__,_|\\__, |\\___|", "#f472b6"},
		{"                   |___/      ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  admission triage "+version).Faint())
	fmt.Fprintln(w)
}

// PrintDecision writes a one-line coloured verdict: red for admit, green for discharge.
func PrintDecision(w io.Writer, decision string, probability *float64) {
	out := termenv.NewOutput(w)

	label := out.String(" " + decision + " ").Bold().Foreground(out.Color("#000000")).Background(out.Color(decisionColor(decision)))
	if probability != nil {
		fmt.Fprintf(w, "%s  p=%.2f\n", label, *probability)
		return
	}
	fmt.Fprintf(w, "%s\n", label)
}

// decisionColor accepts both spellings: the severity gate writes "Admit", finalize writes "ADMIT".
func decisionColor(decision string) string {
	switch decision {
	case domain.FinalAdmit, domain.DecisionAdmit:
		return "#ef4444"
	case domain.FinalDischarge, domain.DecisionDischarge:
		return "#22c55e"
	default:
		return "#facc15"
	}
}
