package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

// stubProvider returns queued responses in order, repeating the last one
// when the queue is exhausted.
type stubProvider struct {
	name      string
	responses []stubResponse
	calls     int
}

type stubResponse struct {
	completion Completion
	err        error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, _ Request) (Completion, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	resp := s.responses[idx]
	return resp.completion, resp.err
}

func okResponse(provider string) stubResponse {
	return stubResponse{completion: Completion{
		Text:     "generated content",
		Model:    "stub-model",
		Provider: provider,
	}}
}

func overloadResponse(provider string) stubResponse {
	return stubResponse{err: apperrors.ProviderOverloaded(provider, errors.New("status 429"))}
}

func transientResponse(provider string) stubResponse {
	return stubResponse{err: apperrors.TransientProvider(provider, errors.New("status 503"))}
}

func newTestPolicy(t *testing.T, primary, secondary Provider) (*FallbackPolicy, *[]time.Duration) {
	t.Helper()

	policy := MustNewFallbackPolicy(FallbackPolicyOptions{
		Primary:     primary,
		Secondary:   secondary,
		MaxAttempts: 3,
		BaseBackoff: 100 * time.Millisecond,
	})

	var slept []time.Duration
	policy.sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		slept = append(slept, d)
		return nil
	}
	return policy, &slept
}

func TestFallbackPolicyPrimarySuccess(t *testing.T) {
	primary := &stubProvider{name: "primary", responses: []stubResponse{okResponse("primary")}}
	secondary := &stubProvider{name: "secondary", responses: []stubResponse{okResponse("secondary")}}
	policy, _ := newTestPolicy(t, primary, secondary)

	result, err := policy.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "primary", result.Provider)
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls)
}

func TestFallbackPolicyOverloadRoutesToSecondaryOnce(t *testing.T) {
	primary := &stubProvider{name: "primary", responses: []stubResponse{overloadResponse("primary")}}
	secondary := &stubProvider{name: "secondary", responses: []stubResponse{okResponse("secondary")}}
	policy, slept := newTestPolicy(t, primary, secondary)

	result, err := policy.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, "secondary", result.Provider)

	// Overload never retries the primary and never backs off before the
	// secondary call.
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	assert.Empty(t, *slept)
}

func TestFallbackPolicyTransientRetriesSameBackend(t *testing.T) {
	primary := &stubProvider{name: "primary", responses: []stubResponse{
		transientResponse("primary"),
		transientResponse("primary"),
		okResponse("primary"),
	}}
	secondary := &stubProvider{name: "secondary", responses: []stubResponse{okResponse("secondary")}}
	policy, slept := newTestPolicy(t, primary, secondary)

	result, err := policy.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 0, secondary.calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)
}

func TestFallbackPolicyTransientExhaustsAttempts(t *testing.T) {
	primary := &stubProvider{name: "primary", responses: []stubResponse{transientResponse("primary")}}
	secondary := &stubProvider{name: "secondary", responses: []stubResponse{okResponse("secondary")}}
	policy, _ := newTestPolicy(t, primary, secondary)

	_, err := policy.Complete(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
	assert.True(t, apperrors.IsTransientProvider(err))

	// Transient exhaustion is not an overload signature, so the
	// secondary is never consulted.
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 0, secondary.calls)
}

func TestFallbackPolicyOverloadWithoutSecondary(t *testing.T) {
	primary := &stubProvider{name: "primary", responses: []stubResponse{overloadResponse("primary")}}
	policy, _ := newTestPolicy(t, primary, nil)

	_, err := policy.Complete(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderOverloaded(err))
	assert.Equal(t, 1, primary.calls)
}

func TestFallbackPolicyBothTiersOverloaded(t *testing.T) {
	primary := &stubProvider{name: "primary", responses: []stubResponse{overloadResponse("primary")}}
	secondary := &stubProvider{name: "secondary", responses: []stubResponse{overloadResponse("secondary")}}
	policy, _ := newTestPolicy(t, primary, secondary)

	_, err := policy.Complete(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderOverloaded(err))
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackPolicySecondaryRetriesTransient(t *testing.T) {
	primary := &stubProvider{name: "primary", responses: []stubResponse{overloadResponse("primary")}}
	secondary := &stubProvider{name: "secondary", responses: []stubResponse{
		transientResponse("secondary"),
		okResponse("secondary"),
	}}
	policy, _ := newTestPolicy(t, primary, secondary)

	result, err := policy.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, 2, secondary.calls)
}

func TestFallbackPolicyValidationErrorNotRetried(t *testing.T) {
	primary := &stubProvider{name: "primary", responses: []stubResponse{
		{err: apperrors.Internal("provider rejected the request (status 400)")},
	}}
	policy, _ := newTestPolicy(t, primary, nil)

	_, err := policy.Complete(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
	assert.Equal(t, 1, primary.calls)
}

func TestFallbackPolicyCanceledContext(t *testing.T) {
	primary := &stubProvider{name: "primary", responses: []stubResponse{transientResponse("primary")}}
	policy, _ := newTestPolicy(t, primary, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := policy.Complete(ctx, Request{Prompt: "hello"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, primary.calls)
}

func TestFallbackPolicyBackoffCapped(t *testing.T) {
	policy := MustNewFallbackPolicy(FallbackPolicyOptions{
		Primary:     &stubProvider{name: "primary", responses: []stubResponse{okResponse("primary")}},
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  8 * time.Second,
	})

	assert.Equal(t, 2*time.Second, policy.backoffFor(1))
	assert.Equal(t, 4*time.Second, policy.backoffFor(2))
	assert.Equal(t, 8*time.Second, policy.backoffFor(3))
	assert.Equal(t, 8*time.Second, policy.backoffFor(4))
	assert.Equal(t, 8*time.Second, policy.backoffFor(30))
}

func TestNewFallbackPolicyRequiresPrimary(t *testing.T) {
	_, err := NewFallbackPolicy(FallbackPolicyOptions{})
	require.Error(t, err)
}
