package model

// Stage identifies one step of the tailoring pipeline. Stage names are
// internal; callers polling job status see the Label instead.
type Stage string

const (
	// StageValidating checks the payload and resolves the resume source.
	StageValidating Stage = "validating"
	// StageAnalyzing extracts requirements from the job description.
	StageAnalyzing Stage = "analyzing_job_description"
	// StageExtracting parses the uploaded or referenced resume.
	StageExtracting Stage = "extracting_resume"
	// StageOptimizing rewrites resume content against the analysis.
	StageOptimizing Stage = "optimizing_content"
	// StageRendering produces the output document.
	StageRendering Stage = "rendering_document"
	// StageEvaluating scores the optimized resume for ATS compatibility.
	StageEvaluating Stage = "evaluating_ats"
	// StageSaving persists the generation result.
	StageSaving Stage = "saving_results"
)

// Progress returns the percent reported when the stage begins. Analysis and
// extraction run concurrently and share a checkpoint.
func (s Stage) Progress() int {
	switch s {
	case StageValidating:
		return 5
	case StageAnalyzing, StageExtracting:
		return 30
	case StageOptimizing:
		return 50
	case StageRendering:
		return 70
	case StageEvaluating:
		return 85
	case StageSaving:
		return 95
	default:
		return 0
	}
}

// Label returns the caller-facing description of the stage.
func (s Stage) Label() string {
	switch s {
	case StageValidating:
		return "Validating input"
	case StageAnalyzing:
		return "Analyzing job description"
	case StageExtracting:
		return "Reading resume"
	case StageOptimizing:
		return "Optimizing content"
	case StageRendering:
		return "Rendering document"
	case StageEvaluating:
		return "Scoring ATS compatibility"
	case StageSaving:
		return "Saving results"
	default:
		return string(s)
	}
}
