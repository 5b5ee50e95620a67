package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond builds start -> fan -> {a, b, c} -> join -> gate -[hi|lo]-> (End | review -> End).
func diamond(t *testing.T, a, b, c, join NodeFunc, gate Router) *Graph {
	t.Helper()
	g, err := NewBuilder().
		Node(NodeSpec{Name: "start"}, constNode(domain.Patch{})).
		Node(NodeSpec{Name: "fan"}, constNode(domain.Patch{})).
		Node(NodeSpec{Name: "a"}, a).
		Node(NodeSpec{Name: "b"}, b).
		Node(NodeSpec{Name: "c"}, c).
		Node(NodeSpec{Name: "join"}, join).
		Node(NodeSpec{Name: "review"}, constNode(domain.Patch{ReviewOutcome: domain.Ptr(domain.ReviewNoOverride)})).
		Edge("start", "fan").
		Edge("fan", "a", "b", "c").
		Edge("a", "join").
		Edge("b", "join").
		Edge("c", "join").
		Branch("join", gate, map[string]string{"hi": End, "lo": "review"}).
		Edge("review", End).
		Build()
	require.NoError(t, err)
	return g
}

func TestEngine_FanOutIsConcurrentAndJoinIsABarrier(t *testing.T) {
	var running, peak atomic.Int32
	var done atomic.Int32
	release := make(chan struct{})

	branch := func(p domain.Patch) NodeFunc {
		return func(ctx context.Context, _ *RunContext, _ *domain.State) (domain.Patch, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			if n == 3 {
				close(release)
			}
			select {
			case <-release:
			case <-time.After(2 * time.Second):
				return domain.Patch{}, errors.New("branches did not run concurrently")
			}
			running.Add(-1)
			done.Add(1)
			return p, nil
		}
	}
	join := func(_ context.Context, _ *RunContext, s *domain.State) (domain.Patch, error) {
		assert.Equal(t, int32(3), done.Load(), "join must observe every branch")
		assert.NotNil(t, s.StructuredScore)
		assert.NotNil(t, s.TextScore)
		return domain.Patch{FusedProbability: domain.Ptr(0.7)}, nil
	}

	g := diamond(t,
		branch(domain.Patch{StructuredScore: domain.Ptr(0.8)}),
		branch(domain.Patch{TextScore: domain.Ptr(0.6)}),
		branch(domain.Patch{}),
		join,
		func(*domain.State) string { return "hi" },
	)
	sink := &recordingSink{}
	out, err := NewEngine(g).Execute(context.Background(), newRC(sink), domain.NewState("exec-test", 1, ""))
	require.NoError(t, err)

	assert.Equal(t, int32(3), peak.Load())
	assert.Equal(t, 0.7, *out.FusedProbability)
	assert.Nil(t, out.ReviewOutcome)
	assert.Equal(t, []string{"join_INPUT", "join_OUTPUT"}, sink.stepsFor("join"))
	assert.Empty(t, sink.stepsFor("review"))
}

func TestEngine_BranchFailureDoesNotBlockSiblings(t *testing.T) {
	failing := func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		return domain.Patch{}, errors.New("predictor down")
	}
	slowOK := func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		time.Sleep(20 * time.Millisecond)
		return domain.Patch{TextScore: domain.Ptr(0.3)}, nil
	}

	g := diamond(t, failing, slowOK, constNode(domain.Patch{}), constNode(domain.Patch{}),
		func(*domain.State) string { return "lo" })

	out, err := NewEngine(g, WithSafeDefaults(func(node string, _ *domain.State) domain.Patch {
		if node == "a" {
			return domain.Patch{StructuredScore: domain.Ptr(0.5)}
		}
		return domain.Patch{}
	})).Execute(context.Background(), newRC(&recordingSink{}), domain.NewState("e", 1, ""))
	require.NoError(t, err)

	assert.Equal(t, 0.5, *out.StructuredScore)
	assert.Equal(t, 0.3, *out.TextScore)
	assert.Equal(t, domain.ReviewNoOverride, *out.ReviewOutcome)
}

func TestEngine_BranchesSeeIsolatedState(t *testing.T) {
	mutate := func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		return domain.Patch{}, nil
	}
	var seen sync.Map
	observe := func(name string) NodeFunc {
		return func(_ context.Context, _ *RunContext, s *domain.State) (domain.Patch, error) {
			seen.Store(name, s)
			s.HumanNote = name
			return domain.Patch{}, nil
		}
	}
	g := diamond(t, observe("a"), observe("b"), mutate, constNode(domain.Patch{}),
		func(*domain.State) string { return "hi" })

	out, err := NewEngine(g).Execute(context.Background(), newRC(&recordingSink{}), domain.NewState("e", 1, "note"))
	require.NoError(t, err)

	a, _ := seen.Load("a")
	b, _ := seen.Load("b")
	assert.NotSame(t, a, b)
	assert.Equal(t, "note", out.HumanNote)
}

func TestEngine_MergesPatchesInDeclarationOrder(t *testing.T) {
	g := diamond(t,
		constNode(domain.Patch{Rationale: domain.Ptr("from a")}),
		func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
			time.Sleep(10 * time.Millisecond)
			return domain.Patch{Rationale: domain.Ptr("from b")}, nil
		},
		constNode(domain.Patch{Rationale: domain.Ptr("from c")}),
		constNode(domain.Patch{}),
		func(*domain.State) string { return "hi" },
	)
	for i := 0; i < 5; i++ {
		out, err := NewEngine(g).Execute(context.Background(), newRC(&recordingSink{}), domain.NewState("e", 1, ""))
		require.NoError(t, err)
		assert.Equal(t, "from c", *out.Rationale)
	}
}

func TestEngine_CriticalFailureAbortsRun(t *testing.T) {
	g, err := NewBuilder().
		Node(NodeSpec{Name: "fetch", Critical: true}, func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
			return domain.Patch{}, domain.ErrVisitNotFound
		}).
		Node(NodeSpec{Name: "next"}, func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
			t.Fatal("must not run after a critical failure")
			return domain.Patch{}, nil
		}).
		Edge("fetch", "next").
		Edge("next", End).
		Build()
	require.NoError(t, err)

	_, err = NewEngine(g).Execute(context.Background(), newRC(&recordingSink{}), domain.NewState("e", 1, ""))
	assert.ErrorIs(t, err, domain.ErrVisitNotFound)
}

func TestEngine_RoutesAndEmitsRouteHook(t *testing.T) {
	var routes []string
	g := diamond(t, constNode(domain.Patch{}), constNode(domain.Patch{}), constNode(domain.Patch{}), constNode(domain.Patch{}),
		func(*domain.State) string { return "lo" })

	e := NewEngine(g, WithLifecycleHooks(domain.LifecycleHooks{
		OnRoute: func(_ context.Context, ev *domain.RouteEvent) {
			routes = append(routes, fmt.Sprintf("%s:%s->%s", ev.Node, ev.Label, ev.Target))
		},
	}))
	out, err := e.Execute(context.Background(), newRC(&recordingSink{}), domain.NewState("e", 1, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"join:lo->review"}, routes)
	assert.Equal(t, domain.ReviewNoOverride, *out.ReviewOutcome)
}

func TestEngine_UnknownRouteLabel(t *testing.T) {
	g := diamond(t, constNode(domain.Patch{}), constNode(domain.Patch{}), constNode(domain.Patch{}), constNode(domain.Patch{}),
		func(*domain.State) string { return "sideways" })
	_, err := NewEngine(g).Execute(context.Background(), newRC(&recordingSink{}), domain.NewState("e", 1, ""))
	assert.ErrorContains(t, err, "sideways")
}

func TestEngine_ConcurrentRunsKeepTheirExecutionIDs(t *testing.T) {
	g := diamond(t, constNode(domain.Patch{}), constNode(domain.Patch{}), constNode(domain.Patch{}), constNode(domain.Patch{}),
		func(*domain.State) string { return "hi" })
	e := NewEngine(g)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("exec-%d", i)
			sink := &recordingSink{}
			_, err := e.Execute(context.Background(), NewRunContext(id, int64(i+1), nil, sink), domain.NewState(id, int64(i+1), ""))
			assert.NoError(t, err)
			for _, rec := range sink.audits {
				assert.Equal(t, id, rec.ExecutionID)
			}
		}()
	}
	wg.Wait()
}
