package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	"github.com/tailorhq/resume-tailor-api/internal/provider"
)

// State carries one job's intermediate outputs through the stage
// sequence. Each stage reads the fields produced before it and writes
// its own; the orchestrator owns the struct and persists progress
// between stages. Timing and provider bookkeeping are guarded by a
// mutex because the analysis and extraction stages run concurrently.
type State struct {
	Job     *model.Job
	Payload *model.TailorResumePayload

	Source     *ResumeSource
	Analysis   *JobAnalysis
	Resume     *ResumeContent
	Optimized  *OptimizedResume
	Document   []byte
	Evaluation *Evaluation

	mu             sync.Mutex
	startedAt      time.Time
	timingsMs      map[string]int64
	fallbackUsed   bool
	providerModels map[string]struct{}
}

// NewState creates the pipeline state for one job attempt.
func NewState(job *model.Job, payload *model.TailorResumePayload, startedAt time.Time) *State {
	return &State{
		Job:            job,
		Payload:        payload,
		startedAt:      startedAt,
		timingsMs:      make(map[string]int64),
		providerModels: make(map[string]struct{}),
	}
}

// RecordTiming stores the wall-clock duration of one stage.
func (s *State) RecordTiming(stage model.Stage, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timingsMs[string(stage)] = elapsed.Milliseconds()
}

// NoteCompletion records provider bookkeeping from one fallback-policy
// call.
func (s *State) NoteCompletion(result provider.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.FallbackUsed {
		s.fallbackUsed = true
	}
	if result.Provider != "" {
		s.providerModels[result.Provider] = struct{}{}
	}
}

// Metrics assembles the generation metrics accumulated so far. Called
// once at the saving stage; the save latency itself is added post-hoc
// by the orchestrator.
func (s *State) Metrics(now time.Time) model.GenerationMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	timings := make(map[string]int64, len(s.timingsMs))
	for stage, ms := range s.timingsMs {
		timings[stage] = ms
	}

	models := make([]string, 0, len(s.providerModels))
	for m := range s.providerModels {
		models = append(models, m)
	}
	sort.Strings(models)

	metrics := model.GenerationMetrics{
		StageTimingsMs:    timings,
		TotalProcessingMs: now.Sub(s.startedAt).Milliseconds(),
		FallbackUsed:      s.fallbackUsed,
		ProviderModels:    models,
		DocumentSizeBytes: int64(len(s.Document)),
	}
	if s.Optimized != nil {
		metrics.KeywordsAdded = s.Optimized.KeywordsAdded
		metrics.SectionsOptimized = s.Optimized.SectionsOptimized
	}
	if s.Evaluation != nil {
		metrics.ATSScore = s.Evaluation.ATSScore
	}
	return metrics
}
