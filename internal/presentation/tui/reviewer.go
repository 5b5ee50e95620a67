package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
)

// Reviewer asks a clinician on the terminal for an override when confidence is low.
// It implements ports.Reviewer.
type Reviewer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewReviewer creates a Reviewer reading answers from in and prompting on out.
func NewReviewer(in io.Reader, out io.Writer) *Reviewer {
	return &Reviewer{in: bufio.NewReader(in), out: out}
}

// Review shows the model signals and reads a probability in [0,1].
// A blank answer keeps the fused probability. Invalid answers are asked again.
func (r *Reviewer) Review(ctx context.Context, req domain.ReviewRequest) (*float64, error) {
	fmt.Fprintf(r.out, "\nHuman review required for visit %d (%s)\n", req.VisitID, req.Reason)
	fmt.Fprintf(r.out, "  structured model:  %s\n", prob(req.StructuredScore))
	fmt.Fprintf(r.out, "  text model:        %s\n", prob(req.TextScore))
	fmt.Fprintf(r.out, "  fused probability: %s\n", prob(req.FusedProbability))
	if req.FusionDecision != "" {
		fmt.Fprintf(r.out, "  fusion decision:   %s\n", req.FusionDecision)
	}
	if req.FusionRationale != "" {
		fmt.Fprintf(r.out, "  rationale:         %s\n", req.FusionRationale)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprint(r.out, "Override admission probability (0-1, blank to keep): ")

		line, err := r.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read review answer: %w", err)
		}
		answer := strings.TrimSpace(line)
		if answer == "" {
			return nil, nil
		}

		p, perr := strconv.ParseFloat(answer, 64)
		if perr == nil && p >= 0 && p <= 1 {
			return &p, nil
		}
		fmt.Fprintf(r.out, "Invalid probability %q.\n", answer)
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("no valid review answer before end of input")
		}
	}
}
