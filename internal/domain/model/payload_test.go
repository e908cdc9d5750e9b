package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

func TestDecodePayloadTailorResume(t *testing.T) {
	raw := json.RawMessage(`{
		"job_description": "Senior Go engineer building payment APIs",
		"position": "Senior Engineer",
		"company": "Acme",
		"upload": {"file_name": "resume.pdf", "content": "ten years of Go"}
	}`)

	decoded, err := DecodePayload(JobTypeTailorResume, raw)
	require.NoError(t, err)

	p, ok := decoded.(*TailorResumePayload)
	require.True(t, ok)
	assert.Equal(t, "Acme", p.Company)
	require.NotNil(t, p.Upload)
	assert.Equal(t, "resume.pdf", p.Upload.FileName)
}

func TestDecodePayloadRejectsUnknownType(t *testing.T) {
	_, err := DecodePayload("extract_resume_v0", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestDecodePayloadRejectsUnknownFields(t *testing.T) {
	raw := json.RawMessage(`{"job_description": "x", "surprise": true}`)
	_, err := DecodePayload(JobTypeTailorResume, raw)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestTailorResumePayloadValidate(t *testing.T) {
	t.Run("missing job description", func(t *testing.T) {
		p := &TailorResumePayload{}
		err := p.Validate()
		require.Error(t, err)
		assert.Equal(t, "job_description", apperrors.GetField(err))
	})

	t.Run("empty upload content", func(t *testing.T) {
		p := &TailorResumePayload{
			JobDescription: "desc",
			Upload:         &UploadedDocument{FileName: "cv.pdf"},
		}
		err := p.Validate()
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("no source at submission is allowed", func(t *testing.T) {
		// Identified callers may rely on a stored extraction; the pipeline's
		// validating stage decides whether a source is actually resolvable.
		p := &TailorResumePayload{JobDescription: "desc"}
		assert.NoError(t, p.Validate())
	})
}
