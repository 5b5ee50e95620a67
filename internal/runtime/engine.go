package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// Engine executes a Graph. It holds no per-run data and is safe for concurrent runs.
type Engine struct {
	graph       *Graph
	wrapped     map[string]NodeFunc
	hooks       domain.LifecycleHooks
	safeDefault SafeDefaultFunc
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithSafeDefaults sets the fallback used when a non-critical node exhausts its retries.
func WithSafeDefaults(fn SafeDefaultFunc) Option {
	return func(e *Engine) {
		e.safeDefault = fn
	}
}

// WithSleep replaces the retry backoff wait. Tests use it to observe delays without waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine wraps every node of g and returns a ready engine.
func NewEngine(g *Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:  g,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	deps := WrapDeps{SafeDefault: e.safeDefault, Hooks: e.hooks, Sleep: e.sleep}
	e.wrapped = make(map[string]NodeFunc, len(g.nodes))
	for name, n := range g.nodes {
		e.wrapped[name] = Wrap(n.fn, n.spec, deps)
	}
	return e
}

// Graph returns the graph the engine runs.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Execute runs the graph from its entry node until End and returns the merged state.
// The input state is not modified.
func (e *Engine) Execute(ctx context.Context, rc *RunContext, initial *domain.State) (*domain.State, error) {
	state := initial.Clone()
	current := e.graph.entry

	for current != End {
		patch, err := e.wrapped[current](ctx, rc, state)
		if err != nil {
			return state, err
		}
		state.Apply(patch)

		next, err := e.next(ctx, rc, current, state)
		if err != nil {
			return state, err
		}
		current = next
	}
	return state, nil
}

// next resolves the node that follows current, running a fan-out first when current declares one.
func (e *Engine) next(ctx context.Context, rc *RunContext, current string, state *domain.State) (string, error) {
	if br, ok := e.graph.branches[current]; ok {
		label := br.router(state)
		target, ok := br.targets[label]
		if !ok {
			e.logger.Error("router returned unknown label", "node", current, "route", label)
			return "", fmt.Errorf("router at %q returned unknown label %q", current, label)
		}
		rc.Logger().Debug("route selected", "node", current, "route", label, "target", target)
		if e.hooks.OnRoute != nil {
			e.hooks.OnRoute(ctx, &domain.RouteEvent{ExecutionID: rc.ExecutionID, Node: current, Label: label, Target: target})
		}
		return target, nil
	}

	targets := e.graph.edges[current]
	if len(targets) == 1 {
		return targets[0], nil
	}

	if err := e.fanOut(ctx, rc, targets, state); err != nil {
		return "", err
	}
	return e.graph.joins[current], nil
}

// fanOut runs targets concurrently on isolated clones of state, waits for all of them and
// merges their patches in declaration order.
func (e *Engine) fanOut(ctx context.Context, rc *RunContext, targets []string, state *domain.State) error {
	base := state.Clone()
	patches := make([]domain.Patch, len(targets))
	errs := make([]error, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range targets {
		fn := e.wrapped[name]
		g.Go(func() error {
			patches[i], errs[i] = fn(gctx, rc, base.Clone())
			// Branch failures are reported through errs so siblings are never cancelled.
			return nil
		})
	}
	_ = g.Wait()

	for i := range targets {
		if errs[i] != nil {
			return errs[i]
		}
	}
	for _, p := range patches {
		state.Apply(p)
	}
	return nil
}
