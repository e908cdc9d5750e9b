package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/data"
	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

// ResultServiceOptions groups dependencies for ResultService.
type ResultServiceOptions struct {
	Repo   core.ResultRepository // Required: result repository
	Logger *slog.Logger          // Optional: structured logger
}

// ResultService provides access to persisted generation results.
type ResultService struct {
	repo   core.ResultRepository
	logger *slog.Logger
}

// NewResultService constructs a new ResultService.
func NewResultService(opts ResultServiceOptions) (*ResultService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ResultRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "result_service")
	}

	return &ResultService{repo: opts.Repo, logger: logger}, nil
}

// MustNewResultService constructs a new ResultService and panics on error.
func MustNewResultService(opts ResultServiceOptions) *ResultService {
	svc, err := NewResultService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ResultService: %v", err))
	}
	return svc
}

// Save persists a generation result.
func (s *ResultService) Save(ctx context.Context, req *model.SaveResultRequest) (*model.GenerationResult, error) {
	result, err := s.repo.Save(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "generation result saved",
			"result_id", result.ID,
			"job_id", result.JobID,
			"document_bytes", len(result.Document),
		)
	}

	return result, nil
}

// GetByJobID returns the non-expired result for a job.
func (s *ResultService) GetByJobID(ctx context.Context, jobID string) (*model.GenerationResult, error) {
	result, err := s.repo.GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, data.ErrResultNotFound) {
			return nil, apperrors.NotFound("generation result")
		}
		return nil, fmt.Errorf("get result for job %s: %w", jobID, err)
	}
	return result, nil
}
