// Package httpx provides the HTTP surface of the resume tailoring API:
// job submission, status polling, result download and queue statistics.
package httpx

import (
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"

	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	"github.com/tailorhq/resume-tailor-api/internal/pipeline"
	"github.com/tailorhq/resume-tailor-api/internal/service"
)

// userIDHeader carries the caller identity resolved by the upstream gateway.
// Absent header means an anonymous submission.
const userIDHeader = "X-User-ID"

// JobHandlers provides HTTP handlers for job submission and polling.
type JobHandlers struct {
	Jobs    *service.JobService
	Results *service.ResultService
	// Blobs resolves externally stored documents on download. Optional;
	// when nil only inline documents can be served.
	Blobs pipeline.BlobStore
	// MaxUploadBytes caps the multipart submission body size.
	MaxUploadBytes int64
}

// submitJobRequest is the JSON submission body. The resume source is either
// an inline upload or a reference to a previously extracted resume; both may
// be omitted by identified callers with a resume on file.
type submitJobRequest struct {
	JobDescription string                  `json:"job_description"`
	Position       string                  `json:"position,omitempty"`
	Company        string                  `json:"company,omitempty"`
	TemplateID     string                  `json:"template_id,omitempty"`
	Language       string                  `json:"language,omitempty"`
	Upload         *model.UploadedDocument `json:"upload,omitempty"`
	ResumeRef      *string                 `json:"resume_ref,omitempty"`
	Priority       model.JobPriority       `json:"priority,omitempty"`
	CorrelationID  string                  `json:"correlation_id,omitempty"`
}

// submitJobResponse acknowledges an accepted submission. Processing happens
// asynchronously; callers poll the status endpoint with the returned id.
type submitJobResponse struct {
	JobID     string          `json:"job_id"`
	Status    model.JobStatus `json:"status"`
	StatusURL string          `json:"status_url"`
}

// SubmitJob handles JSON submissions to the tailoring queue.
func (h *JobHandlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	h.enqueue(w, r, &req)
}

// SubmitUpload handles multipart submissions carrying the resume document as
// a file part. Form fields mirror the JSON submission body.
func (h *JobHandlers) SubmitUpload(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_multipart", Err: err})
		return
	}

	req := submitJobRequest{
		JobDescription: r.FormValue("job_description"),
		Position:       r.FormValue("position"),
		Company:        r.FormValue("company"),
		TemplateID:     r.FormValue("template_id"),
		Language:       r.FormValue("language"),
		Priority:       model.JobPriority(r.FormValue("priority")),
		CorrelationID:  r.FormValue("correlation_id"),
	}

	upload, err := readUploadPart(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	req.Upload = upload

	h.enqueue(w, r, &req)
}

// readUploadPart extracts the resume file part as an inline document.
func readUploadPart(r *http.Request) (*model.UploadedDocument, error) {
	file, header, err := r.FormFile("resume")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperrors.Validationf("resume file part: %v", err)
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "read resume upload")
	}
	if strings.TrimSpace(string(content)) == "" {
		return nil, apperrors.ValidationField("resume", "uploaded resume is empty")
	}

	return &model.UploadedDocument{FileName: header.Filename, Content: string(content)}, nil
}

func (h *JobHandlers) enqueue(w http.ResponseWriter, r *http.Request, req *submitJobRequest) {
	payload := &model.TailorResumePayload{
		JobDescription: req.JobDescription,
		Position:       req.Position,
		Company:        req.Company,
		TemplateID:     req.TemplateID,
		Language:       req.Language,
		Upload:         req.Upload,
		ResumeRef:      req.ResumeRef,
	}

	raw, err := model.EncodePayload(payload)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "encode_failed", Err: err})
		return
	}

	create := &model.CreateJobRequest{
		QueueName:     model.QueueTailoring,
		JobType:       model.JobTypeTailorResume,
		CorrelationID: req.CorrelationID,
		UserID:        callerID(r),
		Payload:       raw,
		Priority:      req.Priority,
	}

	job, err := h.Jobs.Create(r.Context(), create)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, submitJobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		StatusURL: "/api/jobs/" + job.ID,
	})
}

// GetStatus handles polling requests for a job's progress and outcome.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	view, err := h.Jobs.Status(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// DeleteJob removes a job that is not held by a worker. Reserved jobs
// return a conflict so the caller can retry after the lease expires.
func (h *JobHandlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	if err := h.Jobs.Delete(r.Context(), jobID); err != nil {
		WriteAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DownloadResult serves the rendered document for a completed job, either
// from the inline result row or from the object store.
func (h *JobHandlers) DownloadResult(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	result, err := h.Results.GetByJobID(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	document := result.Document
	if len(document) == 0 && result.BlobRef != nil {
		if h.Blobs == nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusInternalServerError,
				ErrCode: "blob_store_unavailable",
				Err:     errors.New("document is externally stored and no blob store is configured"),
			})
			return
		}
		document, err = h.Blobs.Get(r.Context(), *result.BlobRef)
		if err != nil {
			WriteAppError(w, err)
			return
		}
	}
	if len(document) == 0 {
		WriteAppError(w, apperrors.NotFoundf("no document stored for job %s", jobID))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="resume-`+jobID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(document); err != nil {
		// Client disconnects mid-download are not actionable here.
		return
	}
}

// Stats handles queue statistics requests, optionally narrowed by queue
// and job type query parameters.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	filter := model.StatsFilter{
		QueueName: r.URL.Query().Get("queue"),
		JobType:   r.URL.Query().Get("job_type"),
	}

	stats, err := h.Jobs.Stats(r.Context(), filter)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// callerID returns the identity forwarded by the gateway, or nil for
// anonymous submissions.
func callerID(r *http.Request) *string {
	id := strings.TrimSpace(r.Header.Get(userIDHeader))
	if id == "" {
		return nil
	}
	return &id
}
