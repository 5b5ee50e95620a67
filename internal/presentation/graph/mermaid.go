package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/triage/internal/runtime"
	"github.com/aretw0/triage/pkg/domain"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	// CurrentNode marks where a run stopped, usually the node that failed.
	CurrentNode string
}

var (
	modelNodes = map[string]bool{
		domain.NodeStructuredPredictor: true,
		domain.NodeTextPredictor:       true,
		domain.NodeFusion:              true,
	}
	humanNodes = map[string]bool{
		domain.NodeHumanAcknowledgment: true,
		domain.NodeHumanReview:         true,
	}
)

// GenerateMermaid produces a Mermaid flowchart from a graph topology.
// It applies semantic styling:
// - Entry: ((Circle))
// - Model call: [[Subroutine]]
// - Human step: [/Parallelogram/]
// - Router (labelled out-edges): {Rhombus}
// - Default: [Rectangle]
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(topo runtime.Topology, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	routers := make(map[string]bool)
	usesEnd := false
	for _, e := range topo.Edges {
		if e.Label != "" {
			routers[e.From] = true
		}
		if e.To == runtime.End {
			usesEnd = true
		}
	}

	for _, name := range topo.Nodes {
		opener, closer := "[", "]"
		switch {
		case name == topo.Entry:
			opener, closer = "((", "))"
		case routers[name]:
			opener, closer = "{", "}"
		case modelNodes[name]:
			opener, closer = "[[", "]]"
		case humanNodes[name]:
			opener, closer = "[/", "/]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(name), opener, name, closer))
	}
	if usesEnd {
		sb.WriteString(fmt.Sprintf("    %s(((\"end\")))\n", sanitizeMermaidID(runtime.End)))
	}

	for _, e := range topo.Edges {
		arrow := "-->"
		if e.Label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(e.Label, "\"", "'"))
		} else if len(topo.FanOuts[e.From]) > 1 {
			// Parallel branches.
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.Trim(id, "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "end" {
		// "end" is a Mermaid keyword.
		s = "END"
	}
	return s
}
