package model

import (
	"encoding/json"
	"time"
)

// GenerationMetrics summarizes what the pipeline did for one completed job.
type GenerationMetrics struct {
	KeywordsAdded      int              `json:"keywords_added"`
	SectionsOptimized  int              `json:"sections_optimized"`
	ATSScore           int              `json:"ats_score"`
	StageTimingsMs     map[string]int64 `json:"stage_timings_ms"`
	TotalProcessingMs  int64            `json:"total_processing_time_ms"`
	FallbackUsed       bool             `json:"fallback_used"`
	ProviderModels     []string         `json:"provider_models,omitempty"`
	DocumentSizeBytes  int64            `json:"document_size_bytes"`
}

// GenerationResult is the persisted large output of a successfully completed
// job, separate from the job's own audit record. Rows expire and are purged
// by the reaper after ExpiresAt.
type GenerationResult struct {
	ID          string            `json:"id"           db:"id"`
	JobID       string            `json:"job_id"       db:"job_id"`
	UserID      *string           `json:"user_id,omitempty" db:"user_id"`
	// Document holds the rendered binary inline when small enough;
	// otherwise BlobRef points into the object store.
	Document    []byte            `json:"-"            db:"document"`
	BlobRef     *string           `json:"blob_ref,omitempty" db:"blob_ref"`
	Metrics     GenerationMetrics `json:"metrics"      db:"metrics"`
	ExpiresAt   time.Time         `json:"expires_at"   db:"expires_at"`
	CreatedAt   time.Time         `json:"created_at"   db:"created_at"`
}

// SaveResultRequest groups the parameters for persisting a generation result.
type SaveResultRequest struct {
	JobID    string
	UserID   *string
	Document []byte
	BlobRef  *string
	Metrics  GenerationMetrics
	TTL      time.Duration
}

// Summary returns the caller-facing result document embedded in status polls.
// The binary document itself is retrieved separately.
func (r *GenerationResult) Summary() json.RawMessage {
	summary := struct {
		ResultID string            `json:"result_id"`
		ATSScore int               `json:"ats_score"`
		BlobRef  *string           `json:"blob_ref,omitempty"`
		Metrics  GenerationMetrics `json:"processing_metrics"`
	}{
		ResultID: r.ID,
		ATSScore: r.Metrics.ATSScore,
		BlobRef:  r.BlobRef,
		Metrics:  r.Metrics,
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil
	}
	return raw
}
