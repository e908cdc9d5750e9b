// Package pipeline executes the fixed tailoring stage sequence for one
// job: validate, analyze the job description and read the resume
// concurrently, optimize content, render the document, score it against
// an ATS rubric, and persist the result. Stage outputs travel in an
// explicit State struct so each stage is a plain function of its inputs.
package pipeline

// JobAnalysis is the structured requirements extracted from a target job
// description.
type JobAnalysis struct {
	Position         string   `json:"position"`
	Seniority        string   `json:"seniority"`
	RequiredSkills   []string `json:"required_skills"`
	Keywords         []string `json:"keywords"`
	Responsibilities []string `json:"responsibilities"`
}

// ExperienceEntry is one role in a structured resume.
type ExperienceEntry struct {
	Role    string   `json:"role"`
	Company string   `json:"company"`
	Start   string   `json:"start,omitempty"`
	End     string   `json:"end,omitempty"`
	Bullets []string `json:"bullets"`
}

// EducationEntry is one education record in a structured resume.
type EducationEntry struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Year        string `json:"year,omitempty"`
}

// ResumeContent is the structured form of a candidate's resume.
type ResumeContent struct {
	FullName   string            `json:"full_name"`
	Headline   string            `json:"headline,omitempty"`
	Contact    map[string]string `json:"contact,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	Skills     []string          `json:"skills,omitempty"`
	Experience []ExperienceEntry `json:"experience,omitempty"`
	Education  []EducationEntry  `json:"education,omitempty"`
}

// OptimizedResume is rewritten, quantified resume content plus counters
// describing what the rewrite changed.
type OptimizedResume struct {
	Content           ResumeContent `json:"content"`
	KeywordsAdded     int           `json:"keywords_added"`
	SectionsOptimized int           `json:"sections_optimized"`
}

// Evaluation is the ATS rubric score for an optimized resume.
type Evaluation struct {
	ATSScore  int      `json:"ats_score"`
	Strengths []string `json:"strengths,omitempty"`
	Gaps      []string `json:"gaps,omitempty"`
}

// ResumeSource is the resolved origin of resume content for one job.
// Structured is set when a previously extracted resume is reused, in
// which case no parse call is needed; otherwise RawText holds the
// uploaded document text awaiting extraction.
type ResumeSource struct {
	FileName   string
	RawText    string
	Structured *ResumeContent
}
