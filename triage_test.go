package triage_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/workflow"
	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/policy"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visit(id int64, spo2 float64) domain.Resolution {
	return domain.Resolution{
		Record: domain.PatientRecord{
			VisitID:          id,
			AgeBucket:        "35-49",
			ESI:              domain.Ptr(3),
			HeartRate:        domain.Ptr(78.0),
			BPSystolic:       domain.Ptr(124.0),
			OxygenSaturation: domain.Ptr(spo2),
			TriageNote:       "abdominal pain",
		},
		Vitals: domain.Vitals{
			HeartRate:        domain.Ptr(78.0),
			BPSystolic:       domain.Ptr(124.0),
			RespRate:         domain.Ptr(18.0),
			OxygenSaturation: domain.Ptr(spo2),
		},
	}
}

func scores(structured, text float64) []triage.Option {
	return []triage.Option{
		triage.WithStructuredPredictor(ports.StructuredPredictorFunc(func(context.Context, domain.PatientRecord) (float64, error) {
			return structured, nil
		})),
		triage.WithTextPredictor(ports.TextPredictorFunc(func(context.Context, string) (float64, error) {
			return text, nil
		})),
	}
}

func newEngine(t *testing.T, opts ...triage.Option) *triage.Engine {
	t.Helper()
	eng, err := triage.New(opts...)
	require.NoError(t, err)
	return eng
}

func TestEngine_Run(t *testing.T) {
	audit := memory.NewAuditLog()
	store := memory.NewStore()

	opts := append(scores(0.9, 0.85),
		triage.WithRecordResolver(memory.NewResolver(visit(10, 97))),
		triage.WithFusionGenerator(ports.FusionGeneratorFunc(func(context.Context, string) (string, error) {
			return "```json\n{\"decision\": \"admitted\", \"rationale\": \"Consistent high risk.\"}\n```", nil
		})),
		triage.WithAuditSink(audit),
		triage.WithCheckpointStore(store),
	)
	eng := newEngine(t, opts...)

	res, err := eng.Run(context.Background(), triage.RunRequest{VisitID: 10, HumanNote: "stable"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ExecutionID)
	assert.Equal(t, int64(10), res.VisitID)
	assert.Equal(t, domain.FinalAdmit, res.Decision())
	assert.Equal(t, res.ExecutionID, res.State.ExecutionID)
	assert.GreaterOrEqual(t, res.ElapsedSeconds, 0.0)
	assert.False(t, res.Timestamp.IsZero())

	steps := audit.Steps(res.ExecutionID)
	require.NotEmpty(t, steps)
	assert.Equal(t, "fetch_data_INPUT", steps[0])
	assert.Equal(t, "finalize_OUTPUT", steps[len(steps)-1])

	saved, err := eng.Checkpoint(context.Background(), res.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, domain.FinalAdmit, domain.Deref(saved.FinalDecision))
}

func TestEngine_RunRejectsMalformedInput(t *testing.T) {
	audit := memory.NewAuditLog()
	eng := newEngine(t, triage.WithAuditSink(audit))

	_, err := eng.Run(context.Background(), triage.RunRequest{VisitID: -3})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "visit_id", verr.Field)
	assert.True(t, triage.IsClientError(err))
	assert.Empty(t, audit.Records(), "no node may run on malformed input")
}

func TestEngine_RunUnknownVisit(t *testing.T) {
	eng := newEngine(t, triage.WithRecordResolver(memory.NewResolver()))

	res, err := eng.Run(context.Background(), triage.RunRequest{VisitID: 99})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVisitNotFound)
	assert.True(t, triage.IsClientError(err))
	require.NotNil(t, res)
	assert.Empty(t, res.Decision())
}

func TestEngine_NoFusionGeneratorStillDecides(t *testing.T) {
	opts := append(scores(0.4, 0.3), triage.WithRecordResolver(memory.NewResolver(visit(11, 97))))
	eng := newEngine(t, opts...)

	res, err := eng.Run(context.Background(), triage.RunRequest{VisitID: 11})
	require.NoError(t, err)
	assert.InDelta(t, 0.35, domain.Deref(res.State.FusedProbability), 1e-9)
	assert.Equal(t, domain.DecisionDischarge, domain.Deref(res.State.FusionDecision))
	assert.Equal(t, domain.FinalDischarge, res.Decision())
}

func TestEngine_LifecycleHooks(t *testing.T) {
	var mu sync.Mutex
	var started, ended []*domain.RunEvent
	var entered []string

	hooks := domain.LifecycleHooks{
		OnRunStart: func(_ context.Context, e *domain.RunEvent) {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, e)
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			mu.Lock()
			defer mu.Unlock()
			ended = append(ended, e)
		},
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			mu.Lock()
			defer mu.Unlock()
			entered = append(entered, e.Node)
		},
	}
	eng := newEngine(t,
		triage.WithRecordResolver(memory.NewResolver(visit(12, 84))),
		triage.WithLifecycleHooks(hooks),
	)

	res, err := eng.Run(context.Background(), triage.RunRequest{VisitID: 12})
	require.NoError(t, err)

	require.Len(t, started, 1)
	require.Len(t, ended, 1)
	assert.Equal(t, res.ExecutionID, ended[0].ExecutionID)
	assert.True(t, ended[0].Severe)
	assert.Equal(t, domain.DecisionAdmit, ended[0].Decision)
	assert.Equal(t, []string{domain.NodeFetchData, domain.NodeSeverityGate}, entered)
}

func TestEngine_ConcurrentRunsAreIsolated(t *testing.T) {
	resolver := memory.NewResolver()
	for id := int64(1); id <= 20; id++ {
		resolver.Put(visit(id, 97))
	}
	audit := memory.NewAuditLog()
	opts := append(scores(0.2, 0.1), triage.WithRecordResolver(resolver), triage.WithAuditSink(audit))
	eng := newEngine(t, opts...)

	results := make([]*triage.RunResult, 20)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := eng.Run(context.Background(), triage.RunRequest{VisitID: int64(i + 1)})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, int64(i+1), res.VisitID)
		assert.False(t, seen[res.ExecutionID], "execution ids must be unique")
		seen[res.ExecutionID] = true
		for _, rec := range audit.ForExecution(res.ExecutionID) {
			if rec.Node == domain.NodeFetchData && rec.Kind == domain.AuditInput {
				assert.EqualValues(t, i+1, rec.Input["visit_id"])
			}
		}
	}
}

type countingLocker struct {
	mu     sync.Mutex
	locked []string
	freed  int
}

func (l *countingLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = append(l.locked, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.freed++
		return nil
	}, nil
}

func TestEngine_LocksVisit(t *testing.T) {
	locker := &countingLocker{}
	eng := newEngine(t,
		triage.WithRecordResolver(memory.NewResolver(visit(5, 80))),
		triage.WithLocker(locker, time.Second),
	)

	_, err := eng.Run(context.Background(), triage.RunRequest{VisitID: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"visit:5"}, locker.locked)
	assert.Equal(t, 1, locker.freed)
}

func TestEngine_LockFailureAbortsBeforeRun(t *testing.T) {
	audit := memory.NewAuditLog()
	locked := errors.New("held elsewhere")
	eng := newEngine(t,
		triage.WithAuditSink(audit),
		triage.WithLocker(lockerFunc(func(context.Context, string, time.Duration) (ports.UnlockFunc, error) {
			return nil, locked
		}), 0),
	)

	_, err := eng.Run(context.Background(), triage.RunRequest{VisitID: 5})
	assert.ErrorIs(t, err, locked)
	assert.Empty(t, audit.Records())
}

type lockerFunc func(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error)

func (f lockerFunc) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	return f(ctx, key, ttl)
}

func TestNew_RejectsInvalidThresholds(t *testing.T) {
	th := policy.DefaultThresholds()
	th.AdmissionThreshold = 1.5

	_, err := triage.New(triage.WithThresholds(th))
	assert.Error(t, err)
}

func TestEngine_RetriesOverride(t *testing.T) {
	var calls int
	var mu sync.Mutex
	eng := newEngine(t,
		triage.WithRecordResolver(memory.NewResolver(visit(6, 97))),
		triage.WithStructuredPredictor(ports.StructuredPredictorFunc(func(context.Context, domain.PatientRecord) (float64, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return 0, domain.ErrTransient
		})),
		triage.WithRetries(map[string]workflow.Retry{
			domain.NodeStructuredPredictor: {MaxRetries: 3},
		}),
	)

	res, err := eng.Run(context.Background(), triage.RunRequest{VisitID: 6})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, workflow.NeutralProbability, domain.Deref(res.State.StructuredScore))
}

func TestEngine_Topology(t *testing.T) {
	eng := newEngine(t)
	topo := eng.Topology()
	assert.Equal(t, domain.NodeFetchData, topo.Entry)
	assert.Contains(t, topo.Nodes, domain.NodeHumanReview)
}
