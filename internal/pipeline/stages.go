package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
	"github.com/tailorhq/resume-tailor-api/internal/provider"
)

const (
	analyzeSystemPrompt = "You are a technical recruiter. Extract structured hiring requirements " +
		"from job descriptions. Respond with a JSON object only."

	analyzePromptTemplate = `Extract the hiring requirements from this job description.

Job description:
%s

Respond with a JSON object with these fields:
- "position": the role title
- "seniority": one of junior, mid, senior, staff, unknown
- "required_skills": array of concrete skills the role requires
- "keywords": array of terms an applicant tracking system would scan for
- "responsibilities": array of the main responsibilities`

	extractSystemPrompt = "You are a resume parser. Convert raw resume text into structured JSON. " +
		"Respond with a JSON object only."

	extractPromptTemplate = `Parse this resume into structured content.

Resume text:
%s

Respond with a JSON object with these fields:
- "full_name": the candidate's name
- "headline": one-line professional headline
- "contact": object of contact channels (email, phone, location) when present
- "summary": the professional summary, or empty string
- "skills": array of skills
- "experience": array of {"role", "company", "start", "end", "bullets"}
- "education": array of {"institution", "degree", "year"}`

	optimizeSystemPrompt = "You are an expert resume writer. Rewrite resume content to match a " +
		"target role without inventing experience the candidate does not have. " +
		"Respond with a JSON object only."

	optimizePromptTemplate = `Rewrite this resume for the target role. Weave in the missing keywords
where they are truthful, quantify achievements where the source material
supports it, and keep every claim grounded in the original content.

Target role analysis:
%s

Current resume:
%s

Respond with a JSON object with these fields:
- "content": the rewritten resume in the same structure as the input
- "keywords_added": count of analysis keywords newly incorporated
- "sections_optimized": count of resume sections that were rewritten`

	evaluateSystemPrompt = "You are an applicant tracking system audit tool. Score resumes " +
		"against job requirements. Respond with a JSON object only."

	evaluatePromptTemplate = `Score this resume against the job requirements on a 0-100 ATS
compatibility scale, considering keyword coverage, section structure and
formatting friendliness.

Job requirements:
%s

Resume:
%s

Respond with a JSON object with these fields:
- "ats_score": integer 0-100
- "strengths": array of short strings
- "gaps": array of short strings`
)

// analyzeJobDescription extracts structured requirements from the
// payload's job description.
func (o *Orchestrator) analyzeJobDescription(ctx context.Context, state *State) (*JobAnalysis, error) {
	var analysis JobAnalysis
	err := o.completeJSON(ctx, state, provider.Request{
		System:       analyzeSystemPrompt,
		Prompt:       fmt.Sprintf(analyzePromptTemplate, state.Payload.JobDescription),
		Temperature:  0.2,
		JSONResponse: true,
	}, &analysis)
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// extractResume produces structured resume content from the resolved
// source. A reused prior extraction skips the parse call entirely.
func (o *Orchestrator) extractResume(ctx context.Context, state *State) (*ResumeContent, error) {
	if state.Source.Structured != nil {
		return state.Source.Structured, nil
	}

	var content ResumeContent
	err := o.completeJSON(ctx, state, provider.Request{
		System:       extractSystemPrompt,
		Prompt:       fmt.Sprintf(extractPromptTemplate, state.Source.RawText),
		Temperature:  0,
		JSONResponse: true,
	}, &content)
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// optimizeContent rewrites the resume against the job analysis.
func (o *Orchestrator) optimizeContent(ctx context.Context, state *State) (*OptimizedResume, error) {
	analysisJSON, err := json.Marshal(state.Analysis)
	if err != nil {
		return nil, fmt.Errorf("encode job analysis: %w", err)
	}
	resumeJSON, err := json.Marshal(state.Resume)
	if err != nil {
		return nil, fmt.Errorf("encode resume content: %w", err)
	}

	var optimized OptimizedResume
	err = o.completeJSON(ctx, state, provider.Request{
		System:       optimizeSystemPrompt,
		Prompt:       fmt.Sprintf(optimizePromptTemplate, analysisJSON, resumeJSON),
		Temperature:  0.4,
		JSONResponse: true,
	}, &optimized)
	if err != nil {
		return nil, err
	}
	return &optimized, nil
}

// evaluateATS scores the optimized resume against the job requirements.
// The caller wraps this in the deadline guard.
func (o *Orchestrator) evaluateATS(ctx context.Context, state *State) (*Evaluation, error) {
	analysisJSON, err := json.Marshal(state.Analysis)
	if err != nil {
		return nil, fmt.Errorf("encode job analysis: %w", err)
	}
	resumeJSON, err := json.Marshal(state.Optimized.Content)
	if err != nil {
		return nil, fmt.Errorf("encode optimized content: %w", err)
	}

	var evaluation Evaluation
	err = o.completeJSON(ctx, state, provider.Request{
		System:       evaluateSystemPrompt,
		Prompt:       fmt.Sprintf(evaluatePromptTemplate, analysisJSON, resumeJSON),
		Temperature:  0,
		JSONResponse: true,
	}, &evaluation)
	if err != nil {
		return nil, err
	}

	if evaluation.ATSScore < 0 {
		evaluation.ATSScore = 0
	}
	if evaluation.ATSScore > 100 {
		evaluation.ATSScore = 100
	}
	return &evaluation, nil
}

// completeJSON issues one completion through the fallback policy and
// decodes the JSON reply. Malformed replies are classified transient so
// the queue-level retry may get a fresh generation.
func (o *Orchestrator) completeJSON(ctx context.Context, state *State, req provider.Request, out any) error {
	result, err := o.completer.Complete(ctx, req)
	if err != nil {
		return err
	}
	state.NoteCompletion(result)

	if err := json.Unmarshal([]byte(trimCodeFence(result.Text)), out); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeProviderTransient,
			"provider %s returned malformed JSON", result.Provider)
	}
	return nil
}

// trimCodeFence strips a Markdown code fence some models wrap around
// JSON replies despite the structured response format.
func trimCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
