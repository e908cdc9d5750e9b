package model

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

// Job types understood by the tailoring queue. The payload column is
// schema-less in the database; each type has its own strongly-typed payload
// decoded at the queue-consumer boundary rather than trusted from storage.
const (
	// JobTypeTailorResume runs the full tailoring pipeline for one submission.
	JobTypeTailorResume = "tailor_resume"

	// QueueTailoring is the queue the tailoring worker pool consumes.
	QueueTailoring = "tailoring"
)

// UploadedDocument is a caller-supplied source document captured at
// submission time. Content is the raw extracted text of the upload.
type UploadedDocument struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// TailorResumePayload is the input snapshot for a tailor_resume job.
// Exactly one resume source (UploadedDocument or ResumeRef) must be
// resolvable when the pipeline starts; anonymous callers must upload.
type TailorResumePayload struct {
	JobDescription string            `json:"job_description"`
	Position       string            `json:"position,omitempty"`
	Company        string            `json:"company,omitempty"`
	TemplateID     string            `json:"template_id,omitempty"`
	Language       string            `json:"language,omitempty"`
	Upload         *UploadedDocument `json:"upload,omitempty"`
	// ResumeRef points at a previously extracted resume record.
	ResumeRef *string `json:"resume_ref,omitempty"`
}

// Validate checks submission-time constraints on the payload. Resume source
// resolution is deferred to the pipeline's validating stage because an
// identified caller may rely on a previously extracted document.
func (p *TailorResumePayload) Validate() error {
	if strings.TrimSpace(p.JobDescription) == "" {
		return apperrors.ValidationField("job_description", "job description is required")
	}
	if p.Upload != nil && strings.TrimSpace(p.Upload.Content) == "" {
		return apperrors.ValidationField("upload", "uploaded document has no content")
	}
	return nil
}

// DecodePayload decodes a raw payload into the typed variant for jobType.
// Unknown job types and malformed payloads are validation errors.
func DecodePayload(jobType string, raw json.RawMessage) (any, error) {
	switch jobType {
	case JobTypeTailorResume:
		var p TailorResumePayload
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "malformed %s payload", jobType)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, apperrors.Validationf("unknown job type: %q", jobType)
	}
}

// EncodePayload marshals a typed payload for storage.
func EncodePayload(payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}
