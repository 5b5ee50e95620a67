package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/internal/runtime"
	"github.com/aretw0/triage/internal/workflow"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/fusion"
	"github.com/aretw0/triage/pkg/policy"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long one visit stays locked by a run.
const DefaultLockTTL = 2 * time.Minute

// Engine is the high-level entry point of the triage library.
// It is safe for concurrent use: every run gets its own RunContext.
type Engine struct {
	runtime *runtime.Engine
	graph   *runtime.Graph

	resolver   ports.RecordResolver
	structured ports.StructuredPredictor
	text       ports.TextPredictor
	generator  ports.FusionGenerator
	reviewer   ports.Reviewer
	audit      ports.AuditSink
	store      ports.CheckpointStore
	locker     ports.DistributedLocker

	thresholds     policy.Thresholds
	retries        map[string]workflow.Retry
	fusionAttempts int
	lockTTL        time.Duration
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	now            func() time.Time
	newID          func() string
}

// Topology is the read-only description of the triage graph.
type Topology = runtime.Topology

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRecordResolver sets where patient records come from.
func WithRecordResolver(r ports.RecordResolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithStructuredPredictor sets the tabular admission model.
func WithStructuredPredictor(p ports.StructuredPredictor) Option {
	return func(e *Engine) {
		e.structured = p
	}
}

// WithTextPredictor sets the text classifier.
func WithTextPredictor(p ports.TextPredictor) Option {
	return func(e *Engine) {
		e.text = p
	}
}

// WithFusionGenerator sets the generative model used by the fusion agent.
// Without one, fusion always uses the weighted-average fallback.
func WithFusionGenerator(g ports.FusionGenerator) Option {
	return func(e *Engine) {
		e.generator = g
	}
}

// WithReviewer sets the human reviewer consulted on low confidence.
func WithReviewer(r ports.Reviewer) Option {
	return func(e *Engine) {
		e.reviewer = r
	}
}

// WithAuditSink sets where audit records go.
func WithAuditSink(s ports.AuditSink) Option {
	return func(e *Engine) {
		e.audit = s
	}
}

// WithCheckpointStore enables persisting the final state of every run.
func WithCheckpointStore(s ports.CheckpointStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker serializes runs of the same visit.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithThresholds overrides the routing and decision cut-offs.
func WithThresholds(t policy.Thresholds) Option {
	return func(e *Engine) {
		e.thresholds = t
	}
}

// WithRetries overrides the retry policy of individual nodes. Unlisted nodes keep their default.
func WithRetries(r map[string]workflow.Retry) Option {
	return func(e *Engine) {
		for node, retry := range r {
			e.retries[node] = retry
		}
	}
}

// WithFusionAttempts sets how many extra generator calls the fusion agent may make.
func WithFusionAttempts(n int) Option {
	return func(e *Engine) {
		e.fusionAttempts = n
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// New builds the triage graph and returns a ready engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		thresholds:     policy.DefaultThresholds(),
		retries:        workflow.DefaultRetries(),
		fusionAttempts: fusion.DefaultMaxRetries,
		lockTTL:        DefaultLockTTL,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.audit == nil {
		e.audit = ports.NopAuditSink{}
	}
	if err := e.thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}

	agent := fusion.NewAgent(e.generator,
		fusion.WithMaxRetries(e.fusionAttempts),
		fusion.WithInferCutoff(e.thresholds.InferAdmitScore),
		fusion.WithAgentLogger(e.logger.With("component", "fusion")),
	)

	g, err := workflow.Build(workflow.Deps{
		Resolver:   e.resolver,
		Structured: e.structured,
		Text:       e.text,
		Agent:      agent,
		Thresholds: e.thresholds,
		Retries:    e.retries,
		Reviewer:   e.reviewer,
	})
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	e.graph = g
	e.runtime = runtime.NewEngine(g,
		runtime.WithSafeDefaults(workflow.SafeDefault),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithLogger(e.logger),
	)
	return e, nil
}

// RunRequest is the input of one triage run.
type RunRequest struct {
	VisitID   int64  `json:"visit_id"`
	HumanNote string `json:"human_note,omitempty"`
	// HumanOverride replaces the fused probability if the run is routed to human review.
	HumanOverride *float64 `json:"human_override,omitempty"`
}

// Validate rejects malformed requests before any node runs.
func (r RunRequest) Validate() error {
	if r.VisitID <= 0 {
		return &domain.ValidationError{Field: "visit_id", Message: fmt.Sprintf("must be a positive integer, got %d", r.VisitID)}
	}
	if r.HumanOverride != nil && (math.IsNaN(*r.HumanOverride) || math.IsInf(*r.HumanOverride, 0)) {
		return &domain.ValidationError{Field: "human_override", Message: "must be a finite number"}
	}
	return nil
}

// RunResult is the merged final state plus execution metadata.
type RunResult struct {
	State          *domain.State `json:"state"`
	ExecutionID    string        `json:"execution_id"`
	VisitID        int64         `json:"visit_id"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Decision returns the terminal decision of the run.
func (r *RunResult) Decision() string {
	if r == nil || r.State == nil {
		return ""
	}
	return domain.Deref(r.State.FinalDecision)
}

// Run triages one visit end to end.
// It returns a *domain.ValidationError for malformed input and a *domain.NodeError when a
// critical node exhausts its retries; in that case the partial result is returned too.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, fmt.Sprintf("visit:%d", req.VisitID), e.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("lock visit %d: %w", req.VisitID, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn("failed to release visit lock", "visit_id", req.VisitID, "error", err)
			}
		}()
	}

	executionID := e.newID()
	rc := runtime.NewRunContext(executionID, req.VisitID, e.logger, e.audit)
	initial := domain.NewState(executionID, req.VisitID, req.HumanNote)
	if req.HumanOverride != nil {
		initial.HumanOverride = domain.Ptr(*req.HumanOverride)
	}

	if e.hooks.OnRunStart != nil {
		e.hooks.OnRunStart(ctx, &domain.RunEvent{ExecutionID: executionID, VisitID: req.VisitID})
	}
	rc.Logger().Info("triage run started")

	final, runErr := e.runtime.Execute(ctx, rc, initial)
	elapsed := rc.Elapsed()

	result := &RunResult{
		State:          final,
		ExecutionID:    executionID,
		VisitID:        req.VisitID,
		ElapsedSeconds: elapsed.Seconds(),
		Timestamp:      e.now().UTC(),
	}

	if e.store != nil && final != nil {
		if err := e.store.Save(ctx, executionID, final); err != nil {
			rc.Logger().Error("failed to save checkpoint", "error", err)
		}
	}

	if e.hooks.OnRunEnd != nil {
		e.hooks.OnRunEnd(ctx, &domain.RunEvent{
			ExecutionID: executionID,
			VisitID:     req.VisitID,
			Decision:    result.Decision(),
			Severe:      final != nil && final.IsSevere(),
			Duration:    elapsed,
			Err:         runErr,
		})
	}

	if runErr != nil {
		rc.Logger().Error("triage run aborted", "error", runErr, "duration_ms", elapsed.Milliseconds())
		return result, runErr
	}
	rc.Logger().Info("triage run finished", "decision", result.Decision(), "duration_ms", elapsed.Milliseconds())
	return result, nil
}

// Checkpoint loads the stored final state of a previous run.
func (e *Engine) Checkpoint(ctx context.Context, executionID string) (*domain.State, error) {
	if e.store == nil {
		return nil, domain.ErrCheckpointNotFound
	}
	return e.store.Load(ctx, executionID)
}

// Topology describes the triage graph for visualization or introspection tools.
func (e *Engine) Topology() Topology {
	return e.graph.Topology()
}

// IsClientError reports whether err was caused by the request rather than the engine.
func IsClientError(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr) || errors.Is(err, domain.ErrVisitNotFound)
}
