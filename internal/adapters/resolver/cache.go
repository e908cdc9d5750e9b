// Package resolver decides which resume source a tailoring job uses and
// keeps extracted resume content around for reuse.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
	"github.com/tailorhq/resume-tailor-api/internal/pipeline"
)

const (
	extractionKeyPrefix = "resume:extracted:"
	latestKeyPrefix     = "resume:extracted:latest:"

	// DefaultExtractionTTL is how long extracted resume content stays
	// reusable.
	DefaultExtractionTTL = 30 * 24 * time.Hour
)

// CacheResolverOptions contains options for creating a CacheResolver.
type CacheResolverOptions struct {
	// Cache holds extracted resume content. Required.
	Cache core.CacheRepository

	// TTL is the extraction retention window. Defaults to
	// DefaultExtractionTTL.
	TTL time.Duration

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// CacheResolver resolves resume sources per the submission contract:
// uploads win, an explicit resume reference is honored next, identified
// callers fall back to their most recent extraction, and guests without
// an upload fail with a missing_input error.
type CacheResolver struct {
	cache  core.CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewCacheResolver creates a CacheResolver with the given options.
func NewCacheResolver(opts CacheResolverOptions) (*CacheResolver, error) {
	if opts.Cache == nil {
		return nil, errors.New("cache resolver requires a cache repository")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultExtractionTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &CacheResolver{
		cache:  opts.Cache,
		ttl:    opts.TTL,
		logger: opts.Logger.With("component", "resume_resolver"),
	}, nil
}

// MustNewCacheResolver creates a CacheResolver, panicking on invalid
// options.
func MustNewCacheResolver(opts CacheResolverOptions) *CacheResolver {
	r, err := NewCacheResolver(opts)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve implements pipeline.ResumeSourceResolver.
func (r *CacheResolver) Resolve(ctx context.Context, userID *string, payload *model.TailorResumePayload) (*pipeline.ResumeSource, error) {
	if payload.Upload != nil {
		return &pipeline.ResumeSource{
			FileName: payload.Upload.FileName,
			RawText:  payload.Upload.Content,
		}, nil
	}

	if payload.ResumeRef != nil {
		content, err := r.lookupExtraction(ctx, *payload.ResumeRef)
		if err != nil {
			return nil, err
		}
		if content == nil {
			return nil, apperrors.MissingInput("referenced resume is no longer available")
		}
		return &pipeline.ResumeSource{Structured: content}, nil
	}

	if userID != nil {
		ref, err := r.cache.Get(ctx, latestKeyPrefix+*userID)
		if err != nil {
			return nil, apperrors.Persistence("look up latest resume extraction", err)
		}
		if len(ref) > 0 {
			content, err := r.lookupExtraction(ctx, string(ref))
			if err != nil {
				return nil, err
			}
			if content != nil {
				return &pipeline.ResumeSource{Structured: content}, nil
			}
		}
		return nil, apperrors.MissingInput("no resume on file for this account; upload a document")
	}

	return nil, apperrors.MissingInput("guest submissions must include an uploaded document")
}

// StoreExtraction implements pipeline.ExtractionStore. The returned
// reference can be supplied on a later submission to reuse the content.
func (r *CacheResolver) StoreExtraction(ctx context.Context, userID *string, content *pipeline.ResumeContent) (string, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return "", err
	}

	ref := uuid.NewString()
	if err := r.cache.Set(ctx, extractionKeyPrefix+ref, raw, r.ttl); err != nil {
		return "", err
	}

	if userID != nil {
		if err := r.cache.Set(ctx, latestKeyPrefix+*userID, []byte(ref), r.ttl); err != nil {
			// The extraction itself is stored; losing the latest
			// pointer only costs a future reuse.
			r.logger.Warn("failed to update latest extraction pointer", "error", err)
		}
	}
	return ref, nil
}

func (r *CacheResolver) lookupExtraction(ctx context.Context, ref string) (*pipeline.ResumeContent, error) {
	raw, err := r.cache.Get(ctx, extractionKeyPrefix+ref)
	if err != nil {
		return nil, apperrors.Persistence("look up resume extraction", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var content pipeline.ResumeContent
	if err := json.Unmarshal(raw, &content); err != nil {
		r.logger.Warn("discarding corrupt resume extraction", "ref", ref, "error", err)
		return nil, nil
	}
	return &content, nil
}

var (
	_ pipeline.ResumeSourceResolver = (*CacheResolver)(nil)
	_ pipeline.ExtractionStore      = (*CacheResolver)(nil)
)
