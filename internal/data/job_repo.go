package data

import (
	"database/sql"
	"log/slog"
	"time"
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	// RetryBaseDelay is the base delay for exponential retry backoff.
	// Attempt n is rescheduled after RetryBaseDelay * 2^(n-1).
	RetryBaseDelay time.Duration
	// DefaultMaxAttempts caps retries for jobs whose create request does not
	// set its own limit. Zero means 3.
	DefaultMaxAttempts int
	Logger             *slog.Logger
	TimeProvider       TimeProvider
}

// JobRepo provides database operations for the tailoring job queue.
type JobRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  queue_name,
  job_type,
  correlation_id,
  entity_name,
  entity_id,
  user_id,
  status,
  priority,
  attempts,
  max_attempts,
  progress_percent,
  current_stage,
  payload,
  result,
  metadata,
  error_details,
  queued_at,
  scheduled_at,
  started_at,
  completed_at,
  duration_ms,
  lease_expires_at,
  created_at,
  updated_at
`

// priorityWeightSQL orders jobs by priority class. Keep the weights in sync
// with model.JobPriority.Weight.
const priorityWeightSQL = `
  CASE priority
    WHEN 'critical' THEN 30
    WHEN 'high'     THEN 20
    WHEN 'normal'   THEN 10
    ELSE 0
  END
`
