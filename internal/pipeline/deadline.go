package pipeline

import (
	"context"
	"time"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

// WithDeadline races op against a wall-clock budget. The operation runs
// with a cancellable child context; if the budget elapses first the call
// is abandoned, its eventual result is discarded, and a deadline error
// is returned. The result channel is buffered so the goroutine never
// leaks. Cancellation is cooperative: an in-flight network call is
// signalled through the context, not forcibly killed.
func WithDeadline[T any](ctx context.Context, budget time.Duration, name string, op func(context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		value, err := op(opCtx)
		done <- outcome{value: value, err: err}
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, apperrors.DeadlineExceededf("%s exceeded its %s budget", name, budget)
	}
}
