package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

const (
	// DefaultMaxAttempts is the completion attempt cap per backend,
	// counting the first try.
	DefaultMaxAttempts = 3

	// DefaultBaseBackoff is the base delay between transient-error
	// retries against the same backend.
	DefaultBaseBackoff = 2 * time.Second

	// DefaultMaxBackoff caps the exponential retry delay.
	DefaultMaxBackoff = 32 * time.Second

	// DefaultMaxConcurrent bounds in-flight completion calls per policy.
	DefaultMaxConcurrent = 8
)

// FallbackPolicyOptions contains options for creating a FallbackPolicy.
type FallbackPolicyOptions struct {
	// Primary serves every call first. Required.
	Primary Provider

	// Secondary serves a call when the primary reports overload. Nil
	// disables fallback.
	Secondary Provider

	// MaxAttempts caps completion attempts per backend, counting the
	// first try. Defaults to DefaultMaxAttempts.
	MaxAttempts int

	// BaseBackoff is the base delay between transient-error retries.
	// Attempt n waits BaseBackoff * 2^(n-1). Defaults to
	// DefaultBaseBackoff.
	BaseBackoff time.Duration

	// MaxBackoff caps the retry delay. Defaults to DefaultMaxBackoff.
	MaxBackoff time.Duration

	// MaxConcurrent bounds in-flight completion calls across all
	// callers of this policy. Callers beyond the bound queue rather
	// than being rejected. Defaults to DefaultMaxConcurrent.
	MaxConcurrent int

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// Result is a completion plus fallback bookkeeping for metrics.
type Result struct {
	Completion

	// FallbackUsed reports whether the secondary backend served the
	// call after a primary overload.
	FallbackUsed bool
}

// FallbackPolicy wraps a primary and an optional secondary backend
// behind one completion call. An overload signature from the primary
// routes the call to the secondary exactly once; the primary is never
// retried for overload, since overload tends to outlast a user-facing
// request. Transient failures retry the same backend with exponential
// backoff. A weighted semaphore bounds in-flight calls so upstream rate
// limits are respected regardless of worker concurrency.
type FallbackPolicy struct {
	primary     Provider
	secondary   Provider
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	sem         *semaphore.Weighted
	logger      *slog.Logger

	// sleep is injectable for deterministic tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFallbackPolicy creates a FallbackPolicy with the given options.
func NewFallbackPolicy(opts FallbackPolicyOptions) (*FallbackPolicy, error) {
	if opts.Primary == nil {
		return nil, errors.New("fallback policy requires a primary provider")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultBaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &FallbackPolicy{
		primary:     opts.Primary,
		secondary:   opts.Secondary,
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		sem:         semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		logger:      opts.Logger.With("component", "fallback_policy"),
		sleep:       sleepContext,
	}, nil
}

// MustNewFallbackPolicy creates a FallbackPolicy, panicking on invalid
// options.
func MustNewFallbackPolicy(opts FallbackPolicyOptions) *FallbackPolicy {
	p, err := NewFallbackPolicy(opts)
	if err != nil {
		panic(err)
	}
	return p
}

// Complete issues one logical completion through the policy.
func (p *FallbackPolicy) Complete(ctx context.Context, req Request) (Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer p.sem.Release(1)

	completion, err := p.completeWithRetry(ctx, p.primary, req)
	if err == nil {
		return Result{Completion: completion}, nil
	}

	if !apperrors.IsProviderOverloaded(err) || p.secondary == nil {
		return Result{}, err
	}

	p.logger.Warn("primary provider overloaded, routing to secondary",
		"primary", p.primary.Name(),
		"secondary", p.secondary.Name(),
	)

	completion, err = p.completeWithRetry(ctx, p.secondary, req)
	if err != nil {
		return Result{}, err
	}
	return Result{Completion: completion, FallbackUsed: true}, nil
}

// completeWithRetry calls one backend, retrying transient failures up to
// the attempt cap. Overload and non-retryable errors return immediately.
func (p *FallbackPolicy) completeWithRetry(ctx context.Context, backend Provider, req Request) (Completion, error) {
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, p.backoffFor(attempt-1)); err != nil {
				return Completion{}, err
			}
		}

		completion, err := backend.Complete(ctx, req)
		if err == nil {
			return completion, nil
		}
		if !apperrors.IsTransientProvider(err) {
			return Completion{}, err
		}

		lastErr = err
		p.logger.Debug("transient provider failure",
			"provider", backend.Name(),
			"attempt", attempt,
			"error", err,
		)
	}

	return Completion{}, lastErr
}

func (p *FallbackPolicy) backoffFor(retry int) time.Duration {
	delay := p.baseBackoff << (retry - 1)
	if delay > p.maxBackoff || delay <= 0 {
		delay = p.maxBackoff
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
