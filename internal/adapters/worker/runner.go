// Package worker pulls tailoring jobs from the queue and executes the
// pipeline, one job per worker goroutine at a time.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
	"github.com/tailorhq/resume-tailor-api/internal/service"
)

// Pipeline executes the full tailoring stage sequence for one job
// attempt.
type Pipeline interface {
	Run(ctx context.Context, job *model.Job, payload *model.TailorResumePayload) (*model.GenerationResult, error)
}

// RunnerOptions configures the worker runner.
type RunnerOptions struct {
	// Jobs is the job service backing reservation, heartbeats and
	// terminal writes. Required.
	Jobs *service.JobService

	// Pipeline executes reserved jobs. Required.
	Pipeline Pipeline

	// Queue is the queue to drain. Defaults to the tailoring queue.
	Queue string

	// Lease is the per-job lease duration; workers heartbeat at half
	// this interval. Defaults to 120s.
	Lease time.Duration

	// Concurrency is the number of worker goroutines. Defaults to 1.
	Concurrency int

	// PollInterval is the fallback reservation interval when no queue
	// notifications arrive. Defaults to 5s.
	PollInterval time.Duration

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// Runner drains one queue with a pool of worker goroutines. Each worker
// reserves a job, decodes its payload, runs the pipeline and writes the
// terminal state. Idle workers block on queue notifications with a poll
// ticker as a safety net.
type Runner struct {
	jobs         *service.JobService
	pipeline     Pipeline
	queue        string
	lease        time.Duration
	workers      int
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewRunner creates a worker runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("worker runner requires a job service")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("worker runner requires a pipeline")
	}
	if opts.Queue == "" {
		opts.Queue = model.QueueTailoring
	}
	if opts.Lease <= 0 {
		opts.Lease = 120 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Runner{
		jobs:         opts.Jobs,
		pipeline:     opts.Pipeline,
		queue:        opts.Queue,
		lease:        opts.Lease,
		workers:      opts.Concurrency,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger.With("component", "worker"),
	}, nil
}

// MustNewRunner creates a worker runner, panicking on invalid options.
func MustNewRunner(opts RunnerOptions) *Runner {
	r, err := NewRunner(opts)
	if err != nil {
		panic(err)
	}
	return r
}

// Run starts the worker pool and processes jobs until the context is
// cancelled. The first fatal worker error cancels the rest.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting worker pool",
		"queue", r.queue, "workers", r.workers, "lease", r.lease)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsub, notify := r.jobs.Subscribe(r.queue)
	defer unsub()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx, notify); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, r.queue, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForWork(ctx, notify) {
				return nil
			}
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return nil
}

// waitForWork blocks until a queue notification, the poll interval, or
// shutdown. Returns false on shutdown.
func (r *Runner) waitForWork(ctx context.Context, notify <-chan struct{}) bool {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	case <-timer.C:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	logger := r.logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	logger.InfoContext(ctx, "processing job")

	decoded, err := model.DecodePayload(job.JobType, job.Payload)
	if err != nil {
		r.failJob(ctx, job, err, time.Since(start))
		return
	}
	payload, ok := decoded.(*model.TailorResumePayload)
	if !ok {
		r.failJob(ctx, job, apperrors.Validationf("job type %q has no pipeline", job.JobType), time.Since(start))
		return
	}

	// Keep the lease fresh while provider calls run long.
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go r.heartbeatLoop(hbCtx, job.ID)

	result, err := r.pipeline.Run(ctx, job, payload)
	stopHeartbeat()
	elapsed := time.Since(start)

	if err != nil {
		// A shutdown mid-job leaves the record processing; the lease
		// expiry requeues it without burning the attempt's outcome on
		// a cancellation error.
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			logger.InfoContext(ctx, "job interrupted by shutdown, leaving for lease requeue")
			return
		}
		r.failJob(ctx, job, err, elapsed)
		return
	}

	if _, err := r.jobs.Complete(ctx, job.ID, model.CompleteJobParams{
		Result:     result.Summary(),
		DurationMs: elapsed.Milliseconds(),
	}); err != nil {
		logger.ErrorContext(ctx, "complete job error", "error", err)
		return
	}
	logger.InfoContext(ctx, "job completed",
		"duration_ms", elapsed.Milliseconds(),
		"ats_score", result.Metrics.ATSScore,
		"fallback_used", result.Metrics.FallbackUsed)
}

func (r *Runner) failJob(ctx context.Context, job *model.Job, jobErr error, elapsed time.Duration) {
	terminal := apperrors.IsTerminal(jobErr)
	if _, err := r.jobs.Fail(ctx, job.ID, model.FailJobParams{
		ErrorDetails: jobErr.Error(),
		DurationMs:   elapsed.Milliseconds(),
		Terminal:     terminal,
	}); err != nil {
		r.logger.ErrorContext(ctx, "fail job error",
			"job_id", job.ID, "error", err, "original_error", jobErr)
		return
	}
	r.logger.WarnContext(ctx, "job failed",
		"job_id", job.ID,
		"terminal", terminal,
		"error_code", apperrors.GetCode(jobErr),
		"error", jobErr)
}

func (r *Runner) heartbeatLoop(ctx context.Context, jobID string) {
	ticker := time.NewTicker(r.lease / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.jobs.Heartbeat(ctx, jobID, r.lease); err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "heartbeat failed", "job_id", jobID, "error", err)
			}
		}
	}
}
