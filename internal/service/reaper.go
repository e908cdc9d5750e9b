package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tailorhq/resume-tailor-api/config"
	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo      core.ReaperRepository // Required: reaper repository
	Config    config.ReaperConfig   // Required: reaper configuration
	QueueName string                // Required: queue whose leases are swept
	Logger    *slog.Logger          // Optional: structured logger
}

// ReaperService provides job cleanup operations.
//
// This service manages:
// - Returning expired worker leases to the queue (crash recovery).
// - Deleting old completed jobs to prevent database bloat.
// - Deleting old failed jobs to prevent database bloat.
// - Deleting expired generation results.
type ReaperService struct {
	repo      core.ReaperRepository
	config    config.ReaperConfig
	queueName string
	logger    *slog.Logger
	timeNow   func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}
	if opts.QueueName == "" {
		return nil, errors.New("queue name is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"completed_max_age", opts.Config.CompletedMaxAge,
			"failed_max_age", opts.Config.FailedMaxAge,
			"results_max_age", opts.Config.ResultsMaxAge,
		)
	}

	return &ReaperService{
		repo:      opts.Repo,
		config:    opts.Config,
		queueName: opts.QueueName,
		logger:    logger,
		timeNow:   time.Now,
	}, nil
}

// MustNewReaperService constructs a new ReaperService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewReaperService(opts ReaperServiceOptions) *ReaperService {
	svc, err := NewReaperService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ReaperService: %v", err))
	}
	return svc
}

// Run starts the reaper loop and runs until the context is cancelled.
// It performs cleanup operations at the configured interval.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run cleanup immediately after jitter
	if err := s.RunCleanup(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval to prevent thundering herd.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}

// runLoop runs the cleanup loop until context is cancelled.
func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunCleanup(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
				// Continue running despite errors
			}
		}
	}
}

type cleanupStep struct {
	fn    func(context.Context) (int, error)
	label string
}

// RunCleanup performs all cleanup operations once. Exported so operators can
// trigger a sweep out of band.
func (s *ReaperService) RunCleanup(ctx context.Context) error {
	start := s.timeNow()
	var errs []error

	steps := []cleanupStep{
		{fn: s.requeueExpiredLeases, label: "requeue expired leases"},
		{fn: s.deleteOldCompletedJobs, label: "delete old completed jobs"},
		{fn: s.deleteOldFailedJobs, label: "delete old failed jobs"},
		{fn: s.deleteExpiredResults, label: "delete expired results"},
	}

	for _, step := range steps {
		count, err := step.fn(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
			continue
		}
		if count > 0 && s.logger != nil {
			s.logger.InfoContext(ctx, "cleanup step finished",
				"step", step.label,
				"rows", count,
			)
		}
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "cleanup pass finished",
			"elapsed", s.timeNow().Sub(start),
			"errors", len(errs),
		)
	}

	return errors.Join(errs...)
}

func (s *ReaperService) requeueExpiredLeases(ctx context.Context) (int, error) {
	return s.repo.RequeueExpired(ctx, s.queueName)
}

func (s *ReaperService) deleteOldCompletedJobs(ctx context.Context) (int, error) {
	return s.repo.DeleteTerminalJobsOlderThan(ctx, core.DeleteAgedParams{
		Status:    model.JobStatusCompleted,
		Cutoff:    s.timeNow().Add(-s.config.CompletedMaxAge),
		BatchSize: s.config.BatchSize,
	})
}

func (s *ReaperService) deleteOldFailedJobs(ctx context.Context) (int, error) {
	return s.repo.DeleteTerminalJobsOlderThan(ctx, core.DeleteAgedParams{
		Status:    model.JobStatusFailed,
		Cutoff:    s.timeNow().Add(-s.config.FailedMaxAge),
		BatchSize: s.config.BatchSize,
	})
}

func (s *ReaperService) deleteExpiredResults(ctx context.Context) (int, error) {
	return s.repo.DeleteExpiredResults(ctx, core.DeleteAgedParams{
		Cutoff:    s.timeNow().Add(-s.config.ResultsMaxAge),
		BatchSize: s.config.BatchSize,
	})
}

func (s *ReaperService) logCleanupError(err error, operation string) {
	if s.logger == nil {
		return
	}
	s.logger.Error("reaper cleanup failed", "operation", operation, "error", err)
}
