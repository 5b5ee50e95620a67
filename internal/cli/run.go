package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/presentation/graph"
	"github.com/aretw0/triage/internal/presentation/tui"
	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/domain"
)

// RunOptions control how a single CLI run is rendered.
type RunOptions struct {
	// JSON prints the raw RunResult instead of the markdown report.
	JSON bool
	// Mermaid appends the graph with the visited nodes highlighted.
	Mermaid bool
	Out     *os.File
}

// RunOnce triages one visit and renders the outcome.
// trail must be one of the audit sinks of b when Mermaid is set.
func RunOnce(ctx context.Context, b *Bundle, trail *memory.AuditLog, req triage.RunRequest, opts RunOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	res, runErr := b.Engine.Run(ctx, req)
	if res == nil {
		return runErr
	}

	if opts.JSON {
		if err := writeJSON(out, res, runErr); err != nil {
			return err
		}
	} else {
		render := tui.NewRenderer(out)
		text, err := render(tui.Report(res))
		if err != nil {
			text = tui.Report(res)
		}
		fmt.Fprint(out, text)
		if res.State != nil {
			p := res.State.FusedProbability
			tui.PrintDecision(out, res.Decision(), p)
		}
	}

	if opts.Mermaid && trail != nil {
		overlay := &graph.GraphOverlay{VisitedNodes: trail.Nodes(res.ExecutionID)}
		var nerr *domain.NodeError
		if errors.As(runErr, &nerr) {
			overlay.CurrentNode = nerr.Node
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, graph.GenerateMermaid(b.Engine.Topology(), overlay))
	}
	return runErr
}

func writeJSON(w io.Writer, res *triage.RunResult, runErr error) error {
	payload := struct {
		*triage.RunResult
		Error string `json:"error,omitempty"`
	}{RunResult: res}
	if runErr != nil {
		payload.Error = runErr.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
