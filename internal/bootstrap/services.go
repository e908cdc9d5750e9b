package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/tailorhq/resume-tailor-api/config"
	"github.com/tailorhq/resume-tailor-api/internal/adapters/blob"
	"github.com/tailorhq/resume-tailor-api/internal/adapters/renderer"
	"github.com/tailorhq/resume-tailor-api/internal/adapters/resolver"
	"github.com/tailorhq/resume-tailor-api/internal/adapters/worker"
	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/data"
	"github.com/tailorhq/resume-tailor-api/internal/pipeline"
	"github.com/tailorhq/resume-tailor-api/internal/provider"
	"github.com/tailorhq/resume-tailor-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs    *service.JobService
	Results *service.ResultService
	Reaper  *service.ReaperService
	Cache   *data.RedisCacheRepo
	// Blobs is nil when no blob directory is configured; documents are
	// then stored inline regardless of size.
	Blobs pipeline.BlobStore
	// Runner is nil unless the worker service is enabled.
	Runner *worker.Runner
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config  *config.AppConfig
	DB      *sql.DB
	Redis   redis.UniversalClient
	Enabled map[config.ServiceMode]bool
	Logger  *slog.Logger
}

// NewServices builds the service graph for the enabled service modes.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service dependencies are required")
	}
	cfg := deps.Config

	jobRepo := data.NewJobRepo(deps.DB, data.RepoConfig{
		RetryBaseDelay:     cfg.Worker.RetryBaseDelay,
		DefaultMaxAttempts: cfg.Worker.MaxAttempts,
		Logger:             deps.Logger,
	})
	resultRepo := data.NewResultRepo(deps.DB, data.ResultRepoConfig{})
	cacheRepo := data.NewRedisCacheRepo(deps.Redis)

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:           jobRepo,
		DefaultLease:   cfg.Worker.JobLease,
		Cache:          cacheRepo,
		IdempotencyTTL: cfg.Worker.IdempotencyTTL,
		Logger:         deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("job service: %w", err)
	}

	results, err := service.NewResultService(service.ResultServiceOptions{
		Repo:   resultRepo,
		Logger: deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("result service: %w", err)
	}

	container := &ServiceContainer{
		Jobs:    jobs,
		Results: results,
		Cache:   cacheRepo,
	}

	if cfg.Pipeline.BlobDir != "" {
		blobs, berr := blob.NewFSStore(cfg.Pipeline.BlobDir)
		if berr != nil {
			return nil, fmt.Errorf("blob store: %w", berr)
		}
		container.Blobs = blobs
	}

	if deps.Enabled[config.ServiceModeWorker] {
		runner, werr := buildWorker(deps, container, cacheRepo)
		if werr != nil {
			return nil, werr
		}
		container.Runner = runner
	}

	if deps.Enabled[config.ServiceModeReaper] {
		reaper, rerr := service.NewReaperService(service.ReaperServiceOptions{
			Repo:      jobRepo,
			Config:    cfg.Reaper,
			QueueName: cfg.Worker.QueueName,
			Logger:    deps.Logger,
		})
		if rerr != nil {
			return nil, fmt.Errorf("reaper service: %w", rerr)
		}
		container.Reaper = reaper
	}

	return container, nil
}

// buildWorker assembles the tailoring pipeline and its worker pool.
func buildWorker(
	deps *ServiceDeps,
	container *ServiceContainer,
	cacheRepo *data.RedisCacheRepo,
) (*worker.Runner, error) {
	cfg := deps.Config

	if cfg.Provider.APIKey == "" {
		return nil, errors.New("worker service requires PROVIDER_API_KEY")
	}

	primary, err := provider.NewOpenAIProvider(provider.OpenAIProviderOptions{
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
		Model:   cfg.Provider.PrimaryModel,
		Timeout: cfg.Provider.RequestTimeout,
		Logger:  deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w", err)
	}

	var secondary provider.Provider
	if cfg.Provider.SecondaryModel != "" {
		s, serr := provider.NewOpenAIProvider(provider.OpenAIProviderOptions{
			APIKey:  cfg.Provider.APIKey,
			BaseURL: cfg.Provider.BaseURL,
			Model:   cfg.Provider.SecondaryModel,
			Timeout: cfg.Provider.RequestTimeout,
			Logger:  deps.Logger,
		})
		if serr != nil {
			return nil, fmt.Errorf("secondary provider: %w", serr)
		}
		secondary = s
	}

	policy, err := provider.NewFallbackPolicy(provider.FallbackPolicyOptions{
		Primary:       primary,
		Secondary:     secondary,
		MaxAttempts:   cfg.Provider.MaxAttempts,
		BaseBackoff:   cfg.Provider.BaseBackoff,
		MaxConcurrent: cfg.Provider.MaxConcurrent,
		Logger:        deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("fallback policy: %w", err)
	}

	sourceResolver, err := resolver.NewCacheResolver(resolver.CacheResolverOptions{
		Cache:  cacheRepo,
		Logger: deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("resume resolver: %w", err)
	}

	templates := core.NewTemplateCacheService(core.TemplateCacheServiceOptions{
		Cache: cacheRepo,
		Config: core.TemplateCacheConfig{
			TemplateDir: cfg.Pipeline.TemplateDir,
			TTL:         cfg.Cache.TemplateTTL,
		},
	})

	docRenderer, err := renderer.NewChromedpRenderer(renderer.ChromedpRendererOptions{
		Templates:  templates,
		Timeout:    cfg.Pipeline.RenderTimeout,
		ChromePath: cfg.Pipeline.ChromePath,
		Logger:     deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("document renderer: %w", err)
	}

	orchestrator, err := pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
		Completer:        policy,
		Resolver:         sourceResolver,
		Renderer:         docRenderer,
		Results:          container.Results,
		Progress:         container.Jobs,
		Blobs:            container.Blobs,
		Extractions:      sourceResolver,
		EvaluationBudget: cfg.Pipeline.EvaluationBudget,
		ResultTTL:        cfg.Pipeline.ResultTTL,
		Logger:           deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline orchestrator: %w", err)
	}

	runner, err := worker.NewRunner(worker.RunnerOptions{
		Jobs:         container.Jobs,
		Pipeline:     orchestrator,
		Queue:        cfg.Worker.QueueName,
		Lease:        cfg.Worker.JobLease,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		Logger:       deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("worker runner: %w", err)
	}

	return runner, nil
}

// RunServicesWithShutdown starts all enabled services and blocks until a
// shutdown signal arrives or any service fails.
func RunServicesWithShutdown(deps *ServiceDeps, container *ServiceContainer) error {
	if deps == nil || container == nil {
		return errors.New("service dependencies and container are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if deps.Enabled[config.ServiceModeHTTP] {
		runHTTPServer(ctx, g, deps, container)
	}
	if container.Runner != nil {
		g.Go(func() error {
			logger.InfoContext(ctx, "starting worker pool",
				"queue", deps.Config.Worker.QueueName,
				"concurrency", deps.Config.Worker.Concurrency,
			)
			return container.Runner.Run(ctx)
		})
	}
	if container.Reaper != nil {
		g.Go(func() error {
			return container.Reaper.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		container.Jobs.StopNotifier()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("all services stopped")
	return nil
}
