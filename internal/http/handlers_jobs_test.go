package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tailorhq/resume-tailor-api/internal/data"
	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
	"github.com/tailorhq/resume-tailor-api/internal/mocks"
	"github.com/tailorhq/resume-tailor-api/internal/service"
)

type routerFixture struct {
	handler http.Handler
	jobRepo *mocks.MockJobRepository
	resRepo *mocks.MockResultRepository
	blobs   *stubBlobStore
}

type stubBlobStore struct {
	data map[string][]byte
}

func (s *stubBlobStore) Put(_ context.Context, key string, data []byte) (string, error) {
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.data[key] = data
	return key, nil
}

func (s *stubBlobStore) Get(_ context.Context, ref string) ([]byte, error) {
	data, ok := s.data[ref]
	if !ok {
		return nil, apperrors.NotFoundf("blob %s", ref)
	}
	return data, nil
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	jobRepo := mocks.NewMockJobRepository(ctrl)
	resRepo := mocks.NewMockResultRepository(ctrl)

	// The default notifier listens for queue wakeups in the background.
	jobRepo.EXPECT().
		WaitForNotification(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		}).
		AnyTimes()

	jobs := service.MustNewJobService(service.JobServiceOptions{
		Repo:         jobRepo,
		DefaultLease: 30 * time.Second,
	})
	t.Cleanup(jobs.StopNotifier)
	results := service.MustNewResultService(service.ResultServiceOptions{Repo: resRepo})

	blobs := &stubBlobStore{}
	handler := NewRouter(RouterServices{
		Jobs:           jobs,
		Results:        results,
		Blobs:          blobs,
		MaxUploadBytes: 1 << 20,
	})

	return &routerFixture{handler: handler, jobRepo: jobRepo, resRepo: resRepo, blobs: blobs}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func echoCreate(f *routerFixture) {
	f.jobRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			return &model.Job{
				ID:        "job-1",
				QueueName: req.QueueName,
				JobType:   req.JobType,
				UserID:    req.UserID,
				Status:    model.JobStatusQueued,
				Priority:  req.Priority,
				Payload:   req.Payload,
				QueuedAt:  time.Now(),
			}, nil
		})
}

func TestSubmitJobAccepted(t *testing.T) {
	f := newRouterFixture(t)
	echoCreate(f)

	body := `{"job_description":"Senior Go engineer","upload":{"file_name":"cv.txt","content":"ten years of Go"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	rec := f.do(req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["job_id"])
	assert.Equal(t, string(model.JobStatusQueued), resp["status"])
	assert.Equal(t, "/api/jobs/job-1", resp["status_url"])
}

func TestSubmitJobForwardsCallerIdentity(t *testing.T) {
	f := newRouterFixture(t)

	f.jobRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			require.NotNil(t, req.UserID)
			assert.Equal(t, "user-42", *req.UserID)
			return &model.Job{ID: "job-2", Status: model.JobStatusQueued}, nil
		})

	body := `{"job_description":"desc","resume_ref":"ref-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	req.Header.Set("X-User-ID", "user-42")
	rec := f.do(req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSubmitJobMissingDescription(t *testing.T) {
	f := newRouterFixture(t)

	body := `{"upload":{"file_name":"cv.txt","content":"text"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	rec := f.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation", resp["error"])
}

func TestSubmitJobRejectsUnknownFields(t *testing.T) {
	f := newRouterFixture(t)

	body := `{"job_description":"desc","surprise":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	rec := f.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_json", resp["error"])
}

func multipartBody(t *testing.T, fields map[string]string, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("resume", fileName)
		require.NoError(t, err)
		_, err = io.WriteString(fw, fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmitUploadAccepted(t *testing.T) {
	f := newRouterFixture(t)

	f.jobRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			payload, err := model.DecodePayload(req.JobType, req.Payload)
			require.NoError(t, err)
			tailor := payload.(*model.TailorResumePayload)
			require.NotNil(t, tailor.Upload)
			assert.Equal(t, "cv.txt", tailor.Upload.FileName)
			assert.Equal(t, "ten years of Go", tailor.Upload.Content)
			assert.Equal(t, "modern", tailor.TemplateID)
			return &model.Job{ID: "job-3", Status: model.JobStatusQueued}, nil
		})

	body, contentType := multipartBody(t, map[string]string{
		"job_description": "Senior Go engineer",
		"template_id":     "modern",
	}, "cv.txt", "ten years of Go")
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSubmitUploadEmptyFile(t *testing.T) {
	f := newRouterFixture(t)

	body, contentType := multipartBody(t, map[string]string{
		"job_description": "desc",
	}, "cv.txt", "   ")
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation", resp["error"])
}

func TestGetStatusCompleted(t *testing.T) {
	f := newRouterFixture(t)

	stage := string(model.StageSaving)
	completed := time.Now()
	f.jobRepo.EXPECT().GetByID(gomock.Any(), "job-1").Return(&model.Job{
		ID:           "job-1",
		Status:       model.JobStatusCompleted,
		Progress:     100,
		CurrentStage: &stage,
		Result:       json.RawMessage(`{"result_id":"res-1"}`),
		QueuedAt:     completed.Add(-time.Minute),
		CompletedAt:  &completed,
	}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var view model.JobStatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "job-1", view.JobID)
	assert.Equal(t, model.JobStatusCompleted, view.Status)
	assert.Equal(t, 100, view.Progress)
	assert.JSONEq(t, `{"result_id":"res-1"}`, string(view.Result))
}

func TestGetStatusNotFound(t *testing.T) {
	f := newRouterFixture(t)

	f.jobRepo.EXPECT().
		GetByID(gomock.Any(), "missing").
		Return(nil, apperrors.NotFound("job"))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteJobNoContent(t *testing.T) {
	f := newRouterFixture(t)

	f.jobRepo.EXPECT().Delete(gomock.Any(), "job-1").Return(nil)

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/jobs/job-1", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestDeleteJobReservedConflict(t *testing.T) {
	f := newRouterFixture(t)

	f.jobRepo.EXPECT().Delete(gomock.Any(), "job-1").Return(data.ErrJobReserved)

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/jobs/job-1", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "conflict", body["error"])
}

func TestDeleteJobNotFound(t *testing.T) {
	f := newRouterFixture(t)

	f.jobRepo.EXPECT().Delete(gomock.Any(), "missing").Return(data.ErrJobNotFound)

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/jobs/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadResultInline(t *testing.T) {
	f := newRouterFixture(t)

	f.resRepo.EXPECT().GetByJobID(gomock.Any(), "job-1").Return(&model.GenerationResult{
		ID:       "res-1",
		JobID:    "job-1",
		Document: []byte("%PDF-1.7 inline"),
	}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/result", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.7 inline", rec.Body.String())
}

func TestDownloadResultFromBlobStore(t *testing.T) {
	f := newRouterFixture(t)

	ref := "results/job-1.pdf"
	f.blobs.data = map[string][]byte{ref: []byte("%PDF-1.7 external")}
	f.resRepo.EXPECT().GetByJobID(gomock.Any(), "job-1").Return(&model.GenerationResult{
		ID:      "res-1",
		JobID:   "job-1",
		BlobRef: &ref,
	}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/result", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.7 external", rec.Body.String())
}

func TestDownloadResultMissing(t *testing.T) {
	f := newRouterFixture(t)

	f.resRepo.EXPECT().
		GetByJobID(gomock.Any(), "job-9").
		Return(nil, apperrors.NotFound("generation result"))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/job-9/result", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAppliesFilter(t *testing.T) {
	f := newRouterFixture(t)

	f.jobRepo.EXPECT().
		Stats(gomock.Any(), model.StatsFilter{QueueName: "tailoring", JobType: "tailor_resume"}).
		Return([]*model.QueueStats{
			{QueueName: "tailoring", Status: model.JobStatusQueued, Count: 3},
		}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/stats?queue=tailoring&job_type=tailor_resume", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)
}
