package core

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// TemplateCacheService caches resume template HTML so render workers do not
// re-read template files on every job.
type TemplateCacheService struct {
	cache       CacheRepository
	templateDir string
	ttl         time.Duration
}

// TemplateCacheConfig holds configuration for template caching.
type TemplateCacheConfig struct {
	TemplateDir string        `json:"template_dir"`
	TTL         time.Duration `json:"ttl"`
}

// TemplateCacheServiceOptions bundles dependencies for NewTemplateCacheService.
type TemplateCacheServiceOptions struct {
	Cache  CacheRepository
	Config TemplateCacheConfig
}

// DefaultTemplateCacheConfig returns a TemplateCacheConfig with sensible defaults.
func DefaultTemplateCacheConfig() TemplateCacheConfig {
	return TemplateCacheConfig{
		TemplateDir: "templates",
		TTL:         30 * time.Minute,
	}
}

// NewTemplateCacheService creates a new TemplateCacheService.
func NewTemplateCacheService(opts TemplateCacheServiceOptions) *TemplateCacheService {
	cfg := opts.Config
	if cfg.TemplateDir == "" {
		cfg.TemplateDir = DefaultTemplateCacheConfig().TemplateDir
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTemplateCacheConfig().TTL
	}
	return &TemplateCacheService{
		cache:       opts.Cache,
		templateDir: cfg.TemplateDir,
		ttl:         cfg.TTL,
	}
}

// TemplateHTML returns the HTML for a template ID, reading through the cache.
// Unknown template IDs surface the underlying file error.
func (s *TemplateCacheService) TemplateHTML(ctx context.Context, templateID string) ([]byte, error) {
	key := s.templateKey(templateID)

	cached, err := s.cache.Get(ctx, key)
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	// Cache miss or cache failure falls through to disk; the cache is an
	// optimization, not a source of truth.

	content, err := os.ReadFile(filepath.Join(s.templateDir, filepath.Base(templateID)+".html"))
	if err != nil {
		return nil, err
	}

	if setErr := s.cache.Set(ctx, key, content, s.ttl); setErr != nil {
		return content, nil //nolint:nilerr // serve from disk even if cache write fails
	}
	return content, nil
}

// Invalidate removes a cached template. Called when template files change.
func (s *TemplateCacheService) Invalidate(ctx context.Context, templateID string) error {
	_, err := s.cache.Delete(ctx, s.templateKey(templateID))
	return err
}

func (s *TemplateCacheService) templateKey(templateID string) string {
	return "template:html:" + templateID
}
