// Package core defines the ports between the service layer and the data
// layer for the resume tailoring job system, plus small services that only
// depend on those ports.
package core

import (
	"context"
	"time"

	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ReserveNext(ctx context.Context, queueName string, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, queueName string) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	Complete(ctx context.Context, id string, params model.CompleteJobParams) (bool, error)
	Fail(ctx context.Context, id string, params model.FailJobParams) (bool, error)
	UpdateProgress(ctx context.Context, params UpdateProgressParams) (bool, error)
	Stats(ctx context.Context, filter model.StatsFilter) ([]*model.QueueStats, error)
	Delete(ctx context.Context, id string) error
}

// UpdateProgressParams groups parameters for JobRepository.UpdateProgress.
type UpdateProgressParams struct {
	JobID    string
	Progress int
	Stage    string
}

// ResultRepository defines the interface for generation result data.
type ResultRepository interface {
	Save(ctx context.Context, req *model.SaveResultRequest) (*model.GenerationResult, error)
	GetByJobID(ctx context.Context, jobID string) (*model.GenerationResult, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ReaperRepository defines the interface for bulk cleanup of aged rows.
type ReaperRepository interface {
	// RequeueExpired returns expired leases to the queue (or fails jobs out
	// of attempts) and returns the number of rows touched.
	RequeueExpired(ctx context.Context, queueName string) (int, error)
	// DeleteTerminalJobsOlderThan deletes completed/failed jobs older than
	// the cutoff, up to batchSize rows.
	DeleteTerminalJobsOlderThan(ctx context.Context, params DeleteAgedParams) (int, error)
	// DeleteExpiredResults deletes generation results past their expiry,
	// up to batchSize rows.
	DeleteExpiredResults(ctx context.Context, params DeleteAgedParams) (int, error)
}

// DeleteAgedParams groups parameters for reaper delete operations.
type DeleteAgedParams struct {
	Status    model.JobStatus // only used by job deletion; empty means any terminal status
	Cutoff    time.Time
	BatchSize int
}

// CacheRepository defines the interface for caching operations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}
