package pipeline

import (
	"context"

	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	"github.com/tailorhq/resume-tailor-api/internal/provider"
)

// TextCompleter issues a generative-text call through the provider
// fallback policy.
type TextCompleter interface {
	Complete(ctx context.Context, req provider.Request) (provider.Result, error)
}

// ResumeSourceResolver decides which resume source a job uses. Guest
// submissions must carry an upload; identified callers fall back to
// their most recent extracted resume unless the payload references a
// specific one. Returns a missing_input error when nothing resolves.
type ResumeSourceResolver interface {
	Resolve(ctx context.Context, userID *string, payload *model.TailorResumePayload) (*ResumeSource, error)
}

// DocumentRenderer turns optimized resume content into a binary
// document. Implementations may retry internally but expose a single
// call/result contract.
type DocumentRenderer interface {
	Render(ctx context.Context, content *OptimizedResume, templateID string) ([]byte, error)
}

// BlobStore holds rendered documents too large to inline in the result
// row.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// ProgressSink persists a job's stage checkpoint. Implementations are
// best-effort: a failed progress write is logged, never surfaced, so
// observability cannot block business progress.
type ProgressSink interface {
	ReportProgress(ctx context.Context, jobID string, stage model.Stage)
}

// ExtractionStore keeps freshly extracted resume content for reuse by
// later submissions from the same caller.
type ExtractionStore interface {
	StoreExtraction(ctx context.Context, userID *string, content *ResumeContent) (string, error)
}

// ResultSaver persists the generation result for a completed job.
type ResultSaver interface {
	Save(ctx context.Context, req *model.SaveResultRequest) (*model.GenerationResult, error)
}
