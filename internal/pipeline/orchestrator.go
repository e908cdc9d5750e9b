package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

const (
	// DefaultEvaluationBudget bounds the ATS evaluation stage.
	DefaultEvaluationBudget = 20 * time.Second

	// DefaultTemplateID is used when a submission names no template.
	DefaultTemplateID = "classic"

	// DefaultMaxInlineDocumentBytes is the size above which rendered
	// documents move to the blob store instead of the result row.
	DefaultMaxInlineDocumentBytes = 1 << 20
)

// OrchestratorOptions contains dependencies for creating an Orchestrator.
type OrchestratorOptions struct {
	// Completer issues generative-text calls. Required.
	Completer TextCompleter

	// Resolver decides which resume source a job uses. Required.
	Resolver ResumeSourceResolver

	// Renderer produces the output document. Required.
	Renderer DocumentRenderer

	// Results persists generation results. Required.
	Results ResultSaver

	// Progress persists stage checkpoints. Optional; nil disables
	// progress reporting.
	Progress ProgressSink

	// Blobs stores rendered documents above the inline size limit.
	// Optional; nil keeps every document inline.
	Blobs BlobStore

	// Extractions keeps parsed resume content for reuse by later
	// submissions. Optional; nil disables reuse.
	Extractions ExtractionStore

	// EvaluationBudget bounds the ATS evaluation stage. Defaults to
	// DefaultEvaluationBudget.
	EvaluationBudget time.Duration

	// ResultTTL is how long results remain downloadable. Zero uses the
	// result store default.
	ResultTTL time.Duration

	// TemplateID is the fallback template for submissions that name
	// none. Defaults to DefaultTemplateID.
	TemplateID string

	// MaxInlineDocumentBytes is the inline document size limit.
	// Defaults to DefaultMaxInlineDocumentBytes.
	MaxInlineDocumentBytes int

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// Orchestrator executes the tailoring pipeline for one job at a time.
// Stage order is fixed; job analysis and resume extraction run
// concurrently and the pipeline suspends until both finish or either
// fails. Any stage error aborts the remaining stages.
type Orchestrator struct {
	completer        TextCompleter
	resolver         ResumeSourceResolver
	renderer         DocumentRenderer
	results          ResultSaver
	progress         ProgressSink
	blobs            BlobStore
	extractions      ExtractionStore
	evaluationBudget time.Duration
	resultTTL        time.Duration
	templateID       string
	maxInlineBytes   int
	logger           *slog.Logger

	// timeNow is injectable for deterministic timing tests.
	timeNow func() time.Time
}

// NewOrchestrator creates an Orchestrator with the given options.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Completer == nil {
		return nil, errors.New("orchestrator requires a text completer")
	}
	if opts.Resolver == nil {
		return nil, errors.New("orchestrator requires a resume source resolver")
	}
	if opts.Renderer == nil {
		return nil, errors.New("orchestrator requires a document renderer")
	}
	if opts.Results == nil {
		return nil, errors.New("orchestrator requires a result saver")
	}
	if opts.EvaluationBudget <= 0 {
		opts.EvaluationBudget = DefaultEvaluationBudget
	}
	if opts.TemplateID == "" {
		opts.TemplateID = DefaultTemplateID
	}
	if opts.MaxInlineDocumentBytes <= 0 {
		opts.MaxInlineDocumentBytes = DefaultMaxInlineDocumentBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Orchestrator{
		completer:        opts.Completer,
		resolver:         opts.Resolver,
		renderer:         opts.Renderer,
		results:          opts.Results,
		progress:         opts.Progress,
		blobs:            opts.Blobs,
		extractions:      opts.Extractions,
		evaluationBudget: opts.EvaluationBudget,
		resultTTL:        opts.ResultTTL,
		templateID:       opts.TemplateID,
		maxInlineBytes:   opts.MaxInlineDocumentBytes,
		logger:           opts.Logger.With("component", "pipeline"),
		timeNow:          time.Now,
	}, nil
}

// MustNewOrchestrator creates an Orchestrator, panicking on invalid
// options.
func MustNewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	o, err := NewOrchestrator(opts)
	if err != nil {
		panic(err)
	}
	return o
}

// Run executes the full stage sequence for one job attempt and returns
// the persisted generation result. Stage errors abort immediately and
// carry the taxonomy code the worker uses to decide between retry and
// permanent failure.
func (o *Orchestrator) Run(ctx context.Context, job *model.Job, payload *model.TailorResumePayload) (*model.GenerationResult, error) {
	start := o.timeNow()
	state := NewState(job, payload, start)

	o.report(ctx, job.ID, model.StageValidating)
	if err := o.runStage(state, model.StageValidating, func() error {
		source, err := o.resolver.Resolve(ctx, job.UserID, payload)
		if err != nil {
			return err
		}
		state.Source = source
		return nil
	}); err != nil {
		return nil, err
	}

	// Job analysis and resume extraction have no data dependency on
	// each other; run them concurrently and join before optimizing.
	o.report(ctx, job.ID, model.StageAnalyzing)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.runStage(state, model.StageAnalyzing, func() error {
			analysis, err := o.analyzeJobDescription(gctx, state)
			if err != nil {
				return fmt.Errorf("analyze job description: %w", err)
			}
			state.Analysis = analysis
			return nil
		})
	})
	g.Go(func() error {
		return o.runStage(state, model.StageExtracting, func() error {
			resume, err := o.extractResume(gctx, state)
			if err != nil {
				return fmt.Errorf("extract resume: %w", err)
			}
			state.Resume = resume
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Keep fresh extractions around so an identified caller's next
	// submission can skip the parse. Best effort only.
	if o.extractions != nil && state.Source.Structured == nil && job.UserID != nil {
		if _, err := o.extractions.StoreExtraction(ctx, job.UserID, state.Resume); err != nil {
			o.logger.Warn("failed to store resume extraction", "job_id", job.ID, "error", err)
		}
	}

	o.report(ctx, job.ID, model.StageOptimizing)
	if err := o.runStage(state, model.StageOptimizing, func() error {
		optimized, err := o.optimizeContent(ctx, state)
		if err != nil {
			return fmt.Errorf("optimize content: %w", err)
		}
		state.Optimized = optimized
		return nil
	}); err != nil {
		return nil, err
	}

	o.report(ctx, job.ID, model.StageRendering)
	if err := o.runStage(state, model.StageRendering, func() error {
		templateID := payload.TemplateID
		if templateID == "" {
			templateID = o.templateID
		}
		document, err := o.renderer.Render(ctx, state.Optimized, templateID)
		if err != nil {
			if apperrors.GetCode(err) == "" {
				return apperrors.Render("document rendering failed", err)
			}
			return err
		}
		state.Document = document
		return nil
	}); err != nil {
		return nil, err
	}

	o.report(ctx, job.ID, model.StageEvaluating)
	if err := o.runStage(state, model.StageEvaluating, func() error {
		evaluation, err := WithDeadline(ctx, o.evaluationBudget, "ATS evaluation",
			func(ctx context.Context) (*Evaluation, error) {
				return o.evaluateATS(ctx, state)
			})
		if err != nil {
			return err
		}
		state.Evaluation = evaluation
		return nil
	}); err != nil {
		return nil, err
	}

	o.report(ctx, job.ID, model.StageSaving)
	return o.saveResult(ctx, state, start)
}

// saveResult persists the generation result. Its own latency is measured
// separately and folded into the returned metrics after the write, so
// the stored row reflects the pipeline work and the caller still sees
// the full wall-clock picture.
func (o *Orchestrator) saveResult(ctx context.Context, state *State, pipelineStart time.Time) (*model.GenerationResult, error) {
	saveStart := o.timeNow()
	metrics := state.Metrics(saveStart)

	document := state.Document
	var blobRef *string
	if o.blobs != nil && len(document) > o.maxInlineBytes {
		ref, err := o.blobs.Put(ctx, "results/"+state.Job.ID+".pdf", document)
		if err != nil {
			return nil, apperrors.Persistence("store rendered document", err)
		}
		blobRef = &ref
		document = nil
	}

	result, err := o.results.Save(ctx, &model.SaveResultRequest{
		JobID:    state.Job.ID,
		UserID:   state.Job.UserID,
		Document: document,
		BlobRef:  blobRef,
		Metrics:  metrics,
		TTL:      o.resultTTL,
	})
	if err != nil {
		if apperrors.GetCode(err) == "" {
			return nil, apperrors.Persistence("save generation result", err)
		}
		return nil, err
	}

	saveElapsed := o.timeNow().Sub(saveStart)
	state.RecordTiming(model.StageSaving, saveElapsed)

	if result.Metrics.StageTimingsMs == nil {
		result.Metrics.StageTimingsMs = make(map[string]int64)
	}
	result.Metrics.StageTimingsMs[string(model.StageSaving)] = saveElapsed.Milliseconds()
	result.Metrics.TotalProcessingMs = o.timeNow().Sub(pipelineStart).Milliseconds()

	return result, nil
}

func (o *Orchestrator) runStage(state *State, stage model.Stage, fn func() error) error {
	start := o.timeNow()
	err := fn()
	state.RecordTiming(stage, o.timeNow().Sub(start))
	return err
}

func (o *Orchestrator) report(ctx context.Context, jobID string, stage model.Stage) {
	if o.progress == nil {
		return
	}
	o.progress.ReportProgress(ctx, jobID, stage)
}
