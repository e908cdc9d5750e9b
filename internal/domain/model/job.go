// Package model defines the core data types for the resume tailoring job system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current lifecycle state of a job.
type JobStatus string

// JobPriority is a scheduling hint for queue ordering. It never guarantees
// strict ordering across priorities.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobPriority string

const (
	// JobStatusQueued indicates a job is waiting to be picked up by a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates a worker currently owns the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates a job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job failed permanently.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates a failed attempt is scheduled for redelivery.
	JobStatusRetrying JobStatus = "retrying"

	// PriorityLow is for background backfill work.
	PriorityLow JobPriority = "low"
	// PriorityNormal is the default priority for user submissions.
	PriorityNormal JobPriority = "normal"
	// PriorityHigh is for latency-sensitive submissions.
	PriorityHigh JobPriority = "high"
	// PriorityCritical is reserved for operational re-runs.
	PriorityCritical JobPriority = "critical"
)

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobStatus is a known state.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusRetrying:
		return true
	default:
		return false
	}
}

// Terminal returns true for states that end a job's lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid returns true if the JobPriority is a known value.
func (p JobPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Weight maps a priority to its ordering weight; higher runs first.
func (p JobPriority) Weight() int {
	switch p {
	case PriorityCritical:
		return 30
	case PriorityHigh:
		return 20
	case PriorityNormal:
		return 10
	case PriorityLow:
		return 0
	default:
		return 10
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for JobPriority to allow env parsing.
func (p *JobPriority) UnmarshalText(text []byte) error {
	v := JobPriority(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*p = v
		return nil
	}
	return fmt.Errorf("invalid JobPriority: %q", string(text))
}

// Job represents one unit of asynchronous work tracked from submission to a
// terminal state. Records are the single source of truth for job state and
// are never deleted by normal operation.
type Job struct {
	ID            string          `json:"id"                       db:"id"`
	QueueName     string          `json:"queue_name"               db:"queue_name"`
	JobType       string          `json:"job_type"                 db:"job_type"`
	CorrelationID string          `json:"correlation_id"           db:"correlation_id"`
	EntityName    *string         `json:"entity_name,omitempty"    db:"entity_name"`
	EntityID      *string         `json:"entity_id,omitempty"      db:"entity_id"`
	UserID        *string         `json:"user_id,omitempty"        db:"user_id"`
	Status        JobStatus       `json:"status"                   db:"status"`
	Priority      JobPriority     `json:"priority"                 db:"priority"`
	Attempts      int             `json:"attempts"                 db:"attempts"`
	MaxAttempts   int             `json:"max_attempts"             db:"max_attempts"`
	Progress      int             `json:"progress_percent"         db:"progress_percent"`
	CurrentStage  *string         `json:"current_stage,omitempty"  db:"current_stage"`
	Payload       json.RawMessage `json:"payload"                  db:"payload"`
	Result        json.RawMessage `json:"result,omitempty"         db:"result"`
	Metadata      json.RawMessage `json:"metadata"                 db:"metadata"`
	ErrorDetails  *string         `json:"error_details,omitempty"  db:"error_details"`
	QueuedAt      time.Time       `json:"queued_at"                db:"queued_at"`
	ScheduledAt   time.Time       `json:"scheduled_at"             db:"scheduled_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"     db:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"   db:"completed_at"`
	DurationMs    *int64          `json:"processing_duration_ms,omitempty" db:"processing_duration_ms"`
	LeaseExpires  *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt     time.Time       `json:"created_at"               db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"               db:"updated_at"`
}

// AttemptsRemaining reports whether the queue may schedule another attempt.
func (j *Job) AttemptsRemaining() bool {
	return j.Attempts < j.MaxAttempts
}

// CreateJobRequest represents a request to create a new job record.
type CreateJobRequest struct {
	QueueName     string          `json:"queue_name"`
	JobType       string          `json:"job_type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	EntityName    *string         `json:"entity_name,omitempty"`
	EntityID      *string         `json:"entity_id,omitempty"`
	UserID        *string         `json:"user_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	Priority      JobPriority     `json:"priority,omitempty"`
	MaxAttempts   int             `json:"max_attempts,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.QueueName) == "" {
		return errors.New("queue name is required")
	}
	if strings.TrimSpace(r.JobType) == "" {
		return errors.New("job type is required")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return fmt.Errorf("invalid priority: %q", r.Priority)
	}
	if r.MaxAttempts < 0 {
		return errors.New("max attempts must be >= 0")
	}
	return nil
}

// Normalize applies defaults for optional fields.
func (r *CreateJobRequest) Normalize() {
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
}

// QueueStats is one aggregation bucket of Stats, grouped by queue and status.
type QueueStats struct {
	QueueName     string    `json:"queue_name"`
	Status        JobStatus `json:"status"`
	Count         int       `json:"count"`
	AvgDurationMs float64   `json:"avg_duration_ms"`
}

// StatsFilter narrows the Stats aggregation.
type StatsFilter struct {
	QueueName string
	JobType   string
}

// CompleteJobParams groups the terminal success write for a job.
type CompleteJobParams struct {
	Result     json.RawMessage
	DurationMs int64
}

// FailJobParams groups the failure write for a job attempt.
type FailJobParams struct {
	ErrorDetails string
	DurationMs   int64
	// Terminal forces a permanent failure even when attempts remain,
	// used for error classes that can never succeed on retry.
	Terminal bool
}

// JobStatusView is the polling contract returned to callers. It hides
// internal stage names behind a progress percentage and a display label.
type JobStatusView struct {
	JobID        string          `json:"job_id"`
	Status       JobStatus       `json:"status"`
	Progress     int             `json:"progress_percent"`
	CurrentStage string          `json:"current_stage,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	QueuedAt     time.Time       `json:"queued_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}
