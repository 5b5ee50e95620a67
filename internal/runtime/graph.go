package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/triage/pkg/domain"
)

// End is the pseudo-node that terminates a run.
const End = "__end__"

// NodeFunc is one step of the workflow. It receives a private clone of the state and
// returns the fields it wants merged.
type NodeFunc func(ctx context.Context, rc *RunContext, s *domain.State) (domain.Patch, error)

// Router picks a branch label from the merged state. It must be pure.
type Router func(s *domain.State) string

// NodeSpec configures how a node is wrapped.
type NodeSpec struct {
	Name       string
	MaxRetries int
	RetryDelay time.Duration
	// Critical nodes abort the run on exhaustion instead of falling back.
	Critical bool
	// Requires validates the state before the first attempt. A non-nil error is fatal.
	Requires func(s *domain.State) error
}

type graphNode struct {
	spec NodeSpec
	fn   NodeFunc
}

type branch struct {
	router  Router
	targets map[string]string
}

// Graph is an immutable, validated workflow definition.
type Graph struct {
	entry    string
	order    []string
	nodes    map[string]*graphNode
	edges    map[string][]string
	branches map[string]*branch
	joins    map[string]string
}

// Edge is a directed connection used for introspection. Label is empty for unconditional edges.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Topology is a read-only description of a graph.
type Topology struct {
	Entry   string              `json:"entry"`
	Nodes   []string            `json:"nodes"`
	Edges   []Edge              `json:"edges"`
	FanOuts map[string][]string `json:"fan_outs,omitempty"`
}

// Topology returns the nodes in declaration order and every edge.
func (g *Graph) Topology() Topology {
	t := Topology{
		Entry:   g.entry,
		Nodes:   append([]string(nil), g.order...),
		FanOuts: map[string][]string{},
	}
	for _, name := range g.order {
		targets := g.edges[name]
		for _, to := range targets {
			t.Edges = append(t.Edges, Edge{From: name, To: to})
		}
		if len(targets) > 1 {
			t.FanOuts[name] = append([]string(nil), targets...)
		}
		if b, ok := g.branches[name]; ok {
			labels := make([]string, 0, len(b.targets))
			for label := range b.targets {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			for _, label := range labels {
				t.Edges = append(t.Edges, Edge{From: name, To: b.targets[label], Label: label})
			}
		}
	}
	return t
}

// Spec returns the configuration of a node.
func (g *Graph) Spec(name string) (NodeSpec, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return NodeSpec{}, false
	}
	return n.spec, true
}

// Builder assembles a Graph.
type Builder struct {
	g    *Graph
	errs []error
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{g: &Graph{
		nodes:    map[string]*graphNode{},
		edges:    map[string][]string{},
		branches: map[string]*branch{},
		joins:    map[string]string{},
	}}
}

// Node registers a node. The first registered node is the default entry.
func (b *Builder) Node(spec NodeSpec, fn NodeFunc) *Builder {
	switch {
	case spec.Name == "" || spec.Name == End:
		b.errs = append(b.errs, fmt.Errorf("invalid node name %q", spec.Name))
		return b
	case fn == nil:
		b.errs = append(b.errs, fmt.Errorf("node %q has no function", spec.Name))
		return b
	case b.g.nodes[spec.Name] != nil:
		b.errs = append(b.errs, fmt.Errorf("node %q registered twice", spec.Name))
		return b
	case spec.MaxRetries < 0:
		b.errs = append(b.errs, fmt.Errorf("node %q has negative max retries", spec.Name))
		return b
	}
	b.g.nodes[spec.Name] = &graphNode{spec: spec, fn: fn}
	b.g.order = append(b.g.order, spec.Name)
	if b.g.entry == "" {
		b.g.entry = spec.Name
	}
	return b
}

// Entry overrides the entry node.
func (b *Builder) Entry(name string) *Builder {
	b.g.entry = name
	return b
}

// Edge adds unconditional edges. Several targets declare a parallel fan-out.
func (b *Builder) Edge(from string, to ...string) *Builder {
	b.g.edges[from] = append(b.g.edges[from], to...)
	return b
}

// Branch routes from a node through router. Targets map labels to node names (or End).
func (b *Builder) Branch(from string, router Router, targets map[string]string) *Builder {
	if _, dup := b.g.branches[from]; dup {
		b.errs = append(b.errs, fmt.Errorf("node %q has two branch points", from))
		return b
	}
	copied := make(map[string]string, len(targets))
	for k, v := range targets {
		copied[k] = v
	}
	b.g.branches[from] = &branch{router: router, targets: copied}
	return b
}

// Build validates and returns the graph.
func (b *Builder) Build() (*Graph, error) {
	errs := append([]error(nil), b.errs...)
	g := b.g

	exists := func(name string) bool {
		_, ok := g.nodes[name]
		return ok || name == End
	}

	if g.entry == "" {
		errs = append(errs, errors.New("graph has no entry node"))
	} else if _, ok := g.nodes[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q is not registered", g.entry))
	}

	for from, targets := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		for _, to := range targets {
			if !exists(to) {
				errs = append(errs, fmt.Errorf("edge %s -> %s targets an unknown node", from, to))
			}
		}
	}

	for from, br := range g.branches {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("branch from unknown node %q", from))
		}
		if br.router == nil {
			errs = append(errs, fmt.Errorf("branch at %q has no router", from))
		}
		if len(br.targets) == 0 {
			errs = append(errs, fmt.Errorf("branch at %q has no targets", from))
		}
		for label, to := range br.targets {
			if label == "" || to == "" {
				errs = append(errs, fmt.Errorf("branch at %q has an empty label or target", from))
				continue
			}
			if !exists(to) {
				errs = append(errs, fmt.Errorf("branch %s -[%s]-> %s targets an unknown node", from, label, to))
			}
		}
		if len(g.edges[from]) > 0 {
			errs = append(errs, fmt.Errorf("node %q has both edges and a branch", from))
		}
	}

	for _, name := range g.order {
		if len(g.edges[name]) == 0 && g.branches[name] == nil {
			errs = append(errs, fmt.Errorf("node %q has no outgoing edge", name))
		}
	}

	for from, targets := range g.edges {
		if len(targets) < 2 {
			continue
		}
		join, err := g.resolveJoin(from, targets)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.joins[from] = join
	}

	if len(errs) == 0 {
		errs = append(errs, g.checkReachableAcyclic()...)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return g, nil
}

// resolveJoin checks that every fan-out branch is a single node with one edge to a shared join.
func (g *Graph) resolveJoin(from string, targets []string) (string, error) {
	join := ""
	seen := map[string]bool{}
	for _, t := range targets {
		if t == End {
			return "", fmt.Errorf("fan-out at %q cannot target the end", from)
		}
		if seen[t] {
			return "", fmt.Errorf("fan-out at %q lists %q twice", from, t)
		}
		seen[t] = true
		if g.branches[t] != nil {
			return "", fmt.Errorf("fan-out branch %q cannot be a branch point", t)
		}
		next := g.edges[t]
		if len(next) != 1 {
			return "", fmt.Errorf("fan-out branch %q must have exactly one edge to the join node", t)
		}
		if join == "" {
			join = next[0]
		} else if join != next[0] {
			return "", fmt.Errorf("fan-out at %q does not converge: %q and %q", from, join, next[0])
		}
	}
	if join == End {
		return "", fmt.Errorf("fan-out at %q must join on a node, not the end", from)
	}
	return join, nil
}

func (g *Graph) successors(name string) []string {
	out := append([]string(nil), g.edges[name]...)
	if b, ok := g.branches[name]; ok {
		for _, to := range b.targets {
			out = append(out, to)
		}
	}
	return out
}

func (g *Graph) checkReachableAcyclic() []error {
	const (
		white = iota
		grey
		black
	)
	color := map[string]int{}
	var errs []error
	var visit func(string)
	visit = func(n string) {
		if n == End {
			return
		}
		switch color[n] {
		case grey:
			errs = append(errs, fmt.Errorf("cycle through node %q", n))
			return
		case black:
			return
		}
		color[n] = grey
		for _, s := range g.successors(n) {
			visit(s)
		}
		color[n] = black
	}
	visit(g.entry)

	for _, name := range g.order {
		if color[name] == white {
			errs = append(errs, fmt.Errorf("node %q is unreachable from %q", name, g.entry))
		}
	}
	return errs
}
