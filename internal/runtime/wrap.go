package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/aretw0/triage/pkg/domain"
)

// SafeDefaultFunc returns the patch substituted when a non-critical node exhausts its retries.
type SafeDefaultFunc func(node string, s *domain.State) domain.Patch

// WrapDeps are the collaborators of the node wrapper.
type WrapDeps struct {
	SafeDefault SafeDefaultFunc
	Hooks       domain.LifecycleHooks
	// Sleep waits between attempts. It returns early with the context error on cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Wrap decorates fn with the node contract:
//
//  1. one <name>_INPUT record with a snapshot of the incoming state;
//  2. up to MaxRetries+1 attempts, each failure written to the error log;
//  3. a linear pause of RetryDelay*attempt between attempts;
//  4. one <name>_OUTPUT record on success, or one <name>_ERROR record on exhaustion;
//  5. on exhaustion, critical nodes return a *domain.NodeError and the others the safe default.
//
// A failed Requires check or a *domain.ValidationError returned by fn is fatal and never retried.
func Wrap(fn NodeFunc, spec NodeSpec, deps WrapDeps) NodeFunc {
	sleep := deps.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return func(ctx context.Context, rc *RunContext, s *domain.State) (domain.Patch, error) {
		logger := rc.Logger().With("node", spec.Name)
		rc.appendNode(ctx, spec.Name, domain.AuditInput, s, nil, nil, "")
		if deps.Hooks.OnNodeEnter != nil {
			deps.Hooks.OnNodeEnter(ctx, &domain.NodeEvent{ExecutionID: rc.ExecutionID, VisitID: rc.VisitID, Node: spec.Name})
		}

		start := time.Now()
		leave := func(attempts int, fallback bool, err error) {
			if deps.Hooks.OnNodeLeave != nil {
				deps.Hooks.OnNodeLeave(ctx, &domain.NodeEvent{
					ExecutionID: rc.ExecutionID,
					VisitID:     rc.VisitID,
					Node:        spec.Name,
					Attempts:    attempts,
					Duration:    time.Since(start),
					Fallback:    fallback,
					Err:         err,
				})
			}
		}

		if spec.Requires != nil {
			if err := spec.Requires(s); err != nil {
				d := time.Since(start)
				rc.appendError(ctx, spec.Name, 0, err, "", s)
				rc.appendNode(ctx, spec.Name, domain.AuditError, s, nil, &d, describe(err))
				logger.Error("node requirements not met", "error", err)
				leave(0, false, err)
				return domain.Patch{}, err
			}
		}

		var lastErr error
		attempts := 0
		for attempt := 1; attempt <= spec.MaxRetries+1; attempt++ {
			attempts = attempt
			patch, stack, err := invoke(ctx, fn, rc, s.Clone())
			if err == nil {
				d := time.Since(start)
				rc.appendNode(ctx, spec.Name, domain.AuditOutput, s, patch, &d, "")
				logger.Debug("node completed", "attempt", attempt, "duration_ms", d.Milliseconds())
				leave(attempt, false, nil)
				return patch, nil
			}

			lastErr = err
			rc.appendError(ctx, spec.Name, attempt, err, stack, s)
			logger.Warn("node attempt failed", "attempt", attempt, "max_attempts", spec.MaxRetries+1, "error", err)

			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				break
			}
			if attempt <= spec.MaxRetries {
				// Linear, not exponential: the delay grows by RetryDelay per attempt.
				if werr := sleep(ctx, spec.RetryDelay*time.Duration(attempt)); werr != nil {
					lastErr = errors.Join(err, werr)
					break
				}
			}
		}

		d := time.Since(start)
		rc.appendNode(ctx, spec.Name, domain.AuditError, s, nil, &d, describe(lastErr))

		var verr *domain.ValidationError
		if errors.As(lastErr, &verr) {
			leave(attempts, false, lastErr)
			return domain.Patch{}, lastErr
		}

		if spec.Critical {
			nerr := &domain.NodeError{Node: spec.Name, Attempts: attempts, Critical: true, Err: lastErr}
			logger.Error("critical node exhausted", "attempts", attempts, "error", lastErr)
			leave(attempts, false, nerr)
			return domain.Patch{}, nerr
		}

		var fallback domain.Patch
		if deps.SafeDefault != nil {
			fallback = deps.SafeDefault(spec.Name, s)
		}
		logger.Warn("node exhausted, using safe default", "attempts", attempts, "error", lastErr)
		leave(attempts, true, lastErr)
		return fallback, nil
	}
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// invoke runs fn, converting a panic into an error with its stack.
func invoke(ctx context.Context, fn NodeFunc, rc *RunContext, s *domain.State) (patch domain.Patch, stack string, err error) {
	defer func() {
		if r := recover(); r != nil {
			patch = domain.Patch{}
			stack = string(debug.Stack())
			err = &panicError{value: r}
		}
	}()
	patch, err = fn(ctx, rc, s)
	return patch, "", err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func describe(err error) string {
	if err == nil {
		return ""
	}
	return errorKind(err) + ": " + err.Error()
}

func errorKind(err error) string {
	var (
		verr *domain.ValidationError
		nerr *domain.NodeError
		perr *panicError
	)
	switch {
	case errors.As(err, &perr):
		return "Panic"
	case errors.As(err, &verr):
		return "ValidationError"
	case errors.As(err, &nerr):
		return "NodeError"
	case errors.Is(err, domain.ErrParse):
		return "ParseError"
	case errors.Is(err, domain.ErrTransient):
		return "TransientError"
	case errors.Is(err, domain.ErrVisitNotFound):
		return "NotFound"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	default:
		return fmt.Sprintf("%T", err)
	}
}
