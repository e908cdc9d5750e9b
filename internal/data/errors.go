package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Job repository sentinels.
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotDeletable = errors.New("job cannot be deleted (must be in queued, retrying, completed, or failed status)")
	ErrJobReserved     = errors.New("job is leased and cannot be deleted")

	// Result repository sentinels.
	ErrResultNotFound = errors.New("generation result not found")
	ErrJobIDRequired  = errors.New("job_id is required")
)
