package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

func TestWithDeadlineFastOperation(t *testing.T) {
	result, err := WithDeadline(context.Background(), time.Second, "evaluation",
		func(ctx context.Context) (int, error) {
			return 42, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestWithDeadlinePropagatesOperationError(t *testing.T) {
	opErr := errors.New("provider unreachable")
	_, err := WithDeadline(context.Background(), time.Second, "evaluation",
		func(ctx context.Context) (int, error) {
			return 0, opErr
		})
	require.ErrorIs(t, err, opErr)
}

func TestWithDeadlineBudgetExceeded(t *testing.T) {
	started := time.Now()
	budget := 30 * time.Millisecond

	release := make(chan struct{})
	defer close(release)

	_, err := WithDeadline(context.Background(), budget, "evaluation",
		func(ctx context.Context) (int, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return 99, nil
		})

	require.Error(t, err)
	assert.True(t, apperrors.IsDeadlineExceeded(err))
	assert.Contains(t, err.Error(), "evaluation")

	// The guard returns within budget plus scheduling slack, never
	// waiting for the slow operation.
	assert.Less(t, time.Since(started), budget+500*time.Millisecond)
}

func TestWithDeadlineCancelsAbandonedOperation(t *testing.T) {
	canceled := make(chan struct{})

	_, err := WithDeadline(context.Background(), 20*time.Millisecond, "evaluation",
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			close(canceled)
			return 0, ctx.Err()
		})
	require.Error(t, err)
	assert.True(t, apperrors.IsDeadlineExceeded(err))

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("abandoned operation did not observe cancellation")
	}
}

func TestWithDeadlineParentContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithDeadline(ctx, time.Second, "evaluation",
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
	require.ErrorIs(t, err, context.Canceled)
}
