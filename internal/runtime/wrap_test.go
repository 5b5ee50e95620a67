package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_SuccessWritesInputThenOutput(t *testing.T) {
	sink := &recordingSink{}
	fn := Wrap(constNode(domain.Patch{TextScore: domain.Ptr(0.4)}), NodeSpec{Name: "text_predictor"}, WrapDeps{})

	patch, err := fn(context.Background(), newRC(sink), domain.NewState("exec-test", 1, ""))
	require.NoError(t, err)
	assert.Equal(t, 0.4, *patch.TextScore)

	assert.Equal(t, []string{"text_predictor_INPUT", "text_predictor_OUTPUT"}, sink.steps())
	out := sink.audits[1]
	assert.Equal(t, "exec-test", out.ExecutionID)
	require.NotNil(t, out.DurationMS)
	assert.Equal(t, 0.4, out.Output["text_score"])
	assert.Empty(t, sink.errs)
}

func TestWrap_NilPatchIsEmpty(t *testing.T) {
	fn := Wrap(func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		return domain.Patch{}, nil
	}, NodeSpec{Name: "human_acknowledgment"}, WrapDeps{})

	patch, err := fn(context.Background(), newRC(&recordingSink{}), domain.NewState("e", 1, ""))
	require.NoError(t, err)
	assert.True(t, patch.IsEmpty())
}

func TestWrap_RetriesWithLinearBackoff(t *testing.T) {
	sink := &recordingSink{}
	sleeper := &recordingSleep{}
	var calls atomic.Int32

	fn := Wrap(func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		if calls.Add(1) < 4 {
			return domain.Patch{}, domain.ErrTransient
		}
		return domain.Patch{StructuredScore: domain.Ptr(0.8)}, nil
	}, NodeSpec{Name: "structured_predictor", MaxRetries: 3, RetryDelay: 500 * time.Millisecond}, WrapDeps{Sleep: sleeper.sleep})

	patch, err := fn(context.Background(), newRC(sink), domain.NewState("e", 1, ""))
	require.NoError(t, err)
	assert.Equal(t, 0.8, *patch.StructuredScore)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 1500 * time.Millisecond}, sleeper.delays)

	assert.Equal(t, []string{"structured_predictor_INPUT", "structured_predictor_OUTPUT"}, sink.steps())
	require.Len(t, sink.errs, 3)
	for i, rec := range sink.errs {
		assert.Equal(t, i+1, rec.Attempt)
		assert.Equal(t, "TransientError", rec.ErrorType)
		assert.Equal(t, "e", rec.State["execution_id"])
	}
}

func TestWrap_NonCriticalExhaustionUsesSafeDefault(t *testing.T) {
	sink := &recordingSink{}
	sleeper := &recordingSleep{}
	fn := Wrap(func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		return domain.Patch{}, errors.New("model offline")
	}, NodeSpec{Name: "text_predictor", MaxRetries: 1, RetryDelay: time.Millisecond}, WrapDeps{
		Sleep: sleeper.sleep,
		SafeDefault: func(node string, _ *domain.State) domain.Patch {
			assert.Equal(t, "text_predictor", node)
			return domain.Patch{TextScore: domain.Ptr(0.5)}
		},
	})

	patch, err := fn(context.Background(), newRC(sink), domain.NewState("e", 1, ""))
	require.NoError(t, err)
	assert.Equal(t, 0.5, *patch.TextScore)
	assert.Equal(t, []string{"text_predictor_INPUT", "text_predictor_ERROR"}, sink.steps())
	assert.Contains(t, sink.audits[1].Error, "model offline")
	assert.Len(t, sink.errs, 2)
}

func TestWrap_CriticalExhaustionAborts(t *testing.T) {
	sink := &recordingSink{}
	fn := Wrap(func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		return domain.Patch{}, domain.ErrVisitNotFound
	}, NodeSpec{Name: "fetch_data", Critical: true}, WrapDeps{
		SafeDefault: func(string, *domain.State) domain.Patch {
			t.Fatal("critical nodes must not fall back")
			return domain.Patch{}
		},
	})

	_, err := fn(context.Background(), newRC(sink), domain.NewState("e", 1, ""))
	var nerr *domain.NodeError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "fetch_data", nerr.Node)
	assert.Equal(t, 1, nerr.Attempts)
	assert.True(t, nerr.Critical)
	assert.ErrorIs(t, err, domain.ErrVisitNotFound)
	assert.Equal(t, []string{"fetch_data_INPUT", "fetch_data_ERROR"}, sink.steps())
}

func TestWrap_PanicIsRecovered(t *testing.T) {
	sink := &recordingSink{}
	fn := Wrap(func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		panic("nil map")
	}, NodeSpec{Name: "fusion"}, WrapDeps{
		SafeDefault: func(string, *domain.State) domain.Patch {
			return domain.Patch{FusionDecision: domain.Ptr(domain.DecisionError)}
		},
	})

	patch, err := fn(context.Background(), newRC(sink), domain.NewState("e", 1, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionError, *patch.FusionDecision)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, "Panic", sink.errs[0].ErrorType)
	assert.Contains(t, sink.errs[0].Stack, "goroutine")
}

func TestWrap_ValidationErrorIsFatalAndNotRetried(t *testing.T) {
	sink := &recordingSink{}
	var calls atomic.Int32
	fn := Wrap(func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		calls.Add(1)
		return domain.Patch{}, &domain.ValidationError{Node: "structured_predictor", Field: "patient_record", Message: "missing"}
	}, NodeSpec{Name: "structured_predictor", MaxRetries: 3}, WrapDeps{Sleep: (&recordingSleep{}).sleep})

	_, err := fn(context.Background(), newRC(sink), domain.NewState("e", 1, ""))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"structured_predictor_INPUT", "structured_predictor_ERROR"}, sink.steps())
}

func TestWrap_RequiresCheckRunsBeforeAttempts(t *testing.T) {
	sink := &recordingSink{}
	fn := Wrap(func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		t.Fatal("node must not run when requirements fail")
		return domain.Patch{}, nil
	}, NodeSpec{
		Name: "severity_gate",
		Requires: func(s *domain.State) error {
			if s.Vitals == nil {
				return &domain.ValidationError{Node: "severity_gate", Field: "vitals", Message: "missing"}
			}
			return nil
		},
	}, WrapDeps{})

	_, err := fn(context.Background(), newRC(sink), domain.NewState("e", 1, ""))
	require.Error(t, err)
	assert.Equal(t, []string{"severity_gate_INPUT", "severity_gate_ERROR"}, sink.steps())
}

func TestWrap_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	fn := Wrap(func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		calls.Add(1)
		cancel()
		return domain.Patch{}, domain.ErrTransient
	}, NodeSpec{Name: "structured_predictor", MaxRetries: 5, RetryDelay: time.Hour}, WrapDeps{
		SafeDefault: func(string, *domain.State) domain.Patch {
			return domain.Patch{StructuredScore: domain.Ptr(0.5)}
		},
	})

	patch, err := fn(ctx, newRC(&recordingSink{}), domain.NewState("e", 1, ""))
	require.NoError(t, err)
	assert.Equal(t, 0.5, *patch.StructuredScore)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWrap_NodeReceivesClone(t *testing.T) {
	s := domain.NewState("e", 1, "")
	s.Apply(domain.Patch{SeverityReasons: []string{"original"}})

	fn := Wrap(func(_ context.Context, _ *RunContext, in *domain.State) (domain.Patch, error) {
		in.SeverityReasons[0] = "mutated"
		in.VisitID = 99
		return domain.Patch{}, nil
	}, NodeSpec{Name: "n"}, WrapDeps{})

	_, err := fn(context.Background(), newRC(&recordingSink{}), s)
	require.NoError(t, err)
	assert.Equal(t, "original", s.SeverityReasons[0])
	assert.Equal(t, int64(1), s.VisitID)
}

func TestWrap_HooksSeeAttemptsAndFallback(t *testing.T) {
	var enter, leave []*domain.NodeEvent
	fn := Wrap(func(context.Context, *RunContext, *domain.State) (domain.Patch, error) {
		return domain.Patch{}, errors.New("boom")
	}, NodeSpec{Name: "fusion", MaxRetries: 1}, WrapDeps{
		Sleep: (&recordingSleep{}).sleep,
		Hooks: domain.LifecycleHooks{
			OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { enter = append(enter, e) },
			OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) { leave = append(leave, e) },
		},
	})

	_, err := fn(context.Background(), newRC(&recordingSink{}), domain.NewState("e", 1, ""))
	require.NoError(t, err)
	require.Len(t, enter, 1)
	require.Len(t, leave, 1)
	assert.Equal(t, 2, leave[0].Attempts)
	assert.True(t, leave[0].Fallback)
	assert.Error(t, leave[0].Err)
}
