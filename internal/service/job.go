// Package service implements the business logic between the HTTP/worker
// adapters and the data layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/data"
	domainjob "github.com/tailorhq/resume-tailor-api/internal/domain/job"
	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            core.JobRepository        // Required: job repository
	DefaultLease    time.Duration             // Required: default lease duration for jobs
	Logger          *slog.Logger              // Optional: structured logger
	LeasePolicy     *domainjob.LeasePolicy    // Optional: override default lease policy
	Notifier        domainjob.Notifier        // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure default notifier behaviour
	Cache           core.CacheRepository      // Optional: enables correlation ID idempotency claims
	IdempotencyTTL  time.Duration             // Optional: claim lifetime; zero means 24h
}

const defaultIdempotencyTTL = 24 * time.Hour

// JobService provides business logic for job operations including pub/sub notifications.
//
// This service manages:
// - Submission validation and job record creation
// - Job reservation and lease management
// - Attempt bookkeeping (complete, fail, progress)
// - Pub/sub notification system for job availability
// - The caller-facing status view.
type JobService struct {
	repo           core.JobRepository
	leasePolicy    *domainjob.LeasePolicy
	notifier       domainjob.Notifier
	cache          core.CacheRepository
	idempotencyTTL time.Duration
	logger         *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	var leasePolicy *domainjob.LeasePolicy
	switch {
	case opts.LeasePolicy != nil:
		leasePolicy = opts.LeasePolicy
	case opts.DefaultLease > 0:
		var err error
		leasePolicy, err = domainjob.NewLeasePolicy(opts.DefaultLease)
		if err != nil {
			return nil, fmt.Errorf("create lease policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultLease must be positive")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
		logger.Debug("JobService initialized",
			"default_lease", leasePolicy.Default(),
		)
	}

	idempotencyTTL := opts.IdempotencyTTL
	if idempotencyTTL <= 0 {
		idempotencyTTL = defaultIdempotencyTTL
	}

	return &JobService{
		repo:           opts.Repo,
		leasePolicy:    leasePolicy,
		notifier:       notifier,
		cache:          opts.Cache,
		idempotencyTTL: idempotencyTTL,
		logger:         logger,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create validates a submission's payload against its job type and creates
// the job record. Payload validation failures never enter the queue.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("create job request is required")
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	if _, err := model.DecodePayload(req.JobType, req.Payload); err != nil {
		return nil, err
	}

	claimKey, err := s.claimSubmission(ctx, req)
	if err != nil {
		return nil, err
	}

	job, err := s.repo.Create(ctx, req)
	if err != nil {
		s.releaseSubmissionClaim(ctx, claimKey)
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.recordSubmissionClaim(ctx, claimKey, job.ID)

	if s.logger != nil {
		s.logger.DebugContext(
			ctx,
			"job created",
			"id",
			job.ID,
			"queue",
			job.QueueName,
			"job_type",
			job.JobType,
			"priority",
			job.Priority,
		)
	}

	return job, nil
}

// claimSubmission takes an atomic cache claim on the submission's correlation
// ID so retried submissions do not enqueue duplicate jobs. Returns the claim
// key, or empty when no claim applies. Cache outages never block submission.
func (s *JobService) claimSubmission(ctx context.Context, req *model.CreateJobRequest) (string, error) {
	if s.cache == nil || req.CorrelationID == "" {
		return "", nil
	}

	key := submissionClaimKey(req.QueueName, req.CorrelationID)
	claimed, err := s.cache.SetIfNotExists(ctx, key, []byte("pending"), s.idempotencyTTL)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "idempotency claim unavailable; accepting submission",
				"correlation_id", req.CorrelationID,
				"error", err,
			)
		}
		return "", nil
	}
	if !claimed {
		return "", apperrors.Conflict(
			fmt.Sprintf("a job with correlation ID %q was already submitted", req.CorrelationID),
		)
	}
	return key, nil
}

// releaseSubmissionClaim frees a claim after a failed create so the caller
// can retry with the same correlation ID.
func (s *JobService) releaseSubmissionClaim(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if _, err := s.cache.Delete(ctx, key); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to release idempotency claim", "key", key, "error", err)
	}
}

// recordSubmissionClaim replaces the pending claim marker with the created
// job's ID for operator debugging of duplicate submissions.
func (s *JobService) recordSubmissionClaim(ctx context.Context, key, jobID string) {
	if key == "" {
		return
	}
	if err := s.cache.Set(ctx, key, []byte(jobID), s.idempotencyTTL); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to record idempotency claim", "key", key, "error", err)
	}
}

func submissionClaimKey(queueName, correlationID string) string {
	return "jobs:submitted:" + queueName + ":" + correlationID
}

// Delete removes a job record. Jobs holding an active lease cannot be
// deleted; the processing worker owns them until the lease expires.
func (s *JobService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.Validation("job id is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, data.ErrJobNotFound):
			return apperrors.NotFound("job")
		case errors.Is(err, data.ErrJobReserved):
			return apperrors.Conflict("job is reserved by a worker; retry after its lease expires")
		case errors.Is(err, data.ErrJobNotDeletable):
			return apperrors.Conflict("job is processing and cannot be deleted")
		}
		return fmt.Errorf("delete job %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job deleted", "id", id)
	}
	return nil
}

// GetByID retrieves a job record.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return nil, apperrors.NotFound("job")
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ReserveNext reserves the next available job on the given queue for processing.
func (s *JobService) ReserveNext(
	ctx context.Context,
	queueName string,
	lease time.Duration,
) (*model.Job, error) {
	decision := s.leasePolicy.Resolve(lease)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second lease duration to 1 second",
			"requested_duration", decision.Requested,
			"queue", queueName)
	}

	job, err := s.repo.ReserveNext(ctx, queueName, decision.Seconds)
	if err != nil {
		return nil, fmt.Errorf("reserve next job: %w", err)
	}

	if s.logger != nil && job != nil {
		s.logger.DebugContext(
			ctx,
			"job reserved",
			"id",
			job.ID,
			"queue",
			queueName,
			"attempt",
			job.Attempts,
			"lease_seconds",
			decision.Seconds,
		)
	}

	return job, nil
}

// Subscribe creates a subscription for job notifications on the given queue.
// Returns an unsubscribe function and a channel that receives notifications.
func (s *JobService) Subscribe(queueName string) (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe(queueName)
}

// StopNotifier stops all notification listeners. Called during shutdown.
func (s *JobService) StopNotifier() {
	if s.notifier != nil {
		s.notifier.StopAll()
	}
}

// WaitForNotification waits for a notification indicating new jobs are available.
func (s *JobService) WaitForNotification(ctx context.Context, queueName string) error {
	return s.repo.WaitForNotification(ctx, queueName)
}

// Heartbeat extends the lease on a job to indicate it's still being processed.
func (s *JobService) Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error) {
	decision := s.leasePolicy.Resolve(extend)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second heartbeat duration to 1 second",
			"requested_duration", decision.Requested,
			"job_id", id)
	}

	updated, err := s.repo.Heartbeat(ctx, id, decision.Seconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}

	if s.logger != nil && updated {
		s.logger.DebugContext(ctx, "job heartbeat updated", "id", id, "extend_seconds", decision.Seconds)
	}

	return updated, nil
}

// Complete marks a job as completed, recording the result summary and the
// total processing duration.
func (s *JobService) Complete(ctx context.Context, id string, params model.CompleteJobParams) (bool, error) {
	completed, err := s.repo.Complete(ctx, id, params)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}

	if s.logger != nil && completed {
		s.logger.DebugContext(ctx, "job completed", "id", id, "duration_ms", params.DurationMs)
	}

	return completed, nil
}

// Fail records a failed attempt. The repository decides between retry
// backoff and permanent failure; Terminal failures never retry.
func (s *JobService) Fail(ctx context.Context, id string, params model.FailJobParams) (bool, error) {
	if params.ErrorDetails == "" {
		return false, errors.New("error details required")
	}

	failed, err := s.repo.Fail(ctx, id, params)
	if err != nil {
		return false, fmt.Errorf("fail job %s: %w", id, err)
	}

	if s.logger != nil && failed {
		s.logger.DebugContext(ctx, "job attempt failed",
			"id", id,
			"terminal", params.Terminal,
			"error", params.ErrorDetails,
		)
	}

	return failed, nil
}

// ReportProgress advances a job's progress checkpoint. Progress writes are
// best-effort: a failed write is logged, never surfaced to the pipeline.
func (s *JobService) ReportProgress(ctx context.Context, id string, stage model.Stage) {
	updated, err := s.repo.UpdateProgress(ctx, core.UpdateProgressParams{
		JobID:    id,
		Progress: stage.Progress(),
		Stage:    string(stage),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "progress update failed",
			"job_id", id,
			"stage", stage,
			"error", err,
		)
		return
	}

	if !updated && s.logger != nil {
		s.logger.DebugContext(ctx, "progress update skipped; job no longer processing",
			"job_id", id,
			"stage", stage,
		)
	}
}

// Status builds the caller-facing polling view for a job.
func (s *JobService) Status(ctx context.Context, id string) (*model.JobStatusView, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &model.JobStatusView{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		QueuedAt:    job.QueuedAt,
		CompletedAt: job.CompletedAt,
	}

	if job.CurrentStage != nil {
		view.CurrentStage = model.Stage(*job.CurrentStage).Label()
	}
	if job.ErrorDetails != nil && job.Status == model.JobStatusFailed {
		view.Error = *job.ErrorDetails
	}
	if job.Status == model.JobStatusCompleted {
		view.Result = job.Result
	}

	return view, nil
}

// Stats returns per-queue, per-status aggregations.
func (s *JobService) Stats(ctx context.Context, filter model.StatsFilter) ([]*model.QueueStats, error) {
	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}
