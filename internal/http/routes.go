package httpx

import (
	"log/slog"
	"net/http"

	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/pipeline"
	"github.com/tailorhq/resume-tailor-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs    *service.JobService
	Results *service.ResultService
	// Blobs resolves externally stored result documents. Optional.
	Blobs pipeline.BlobStore
	// Cache backs the health check. Optional.
	Cache core.CacheRepository
	// MaxUploadBytes caps multipart submission bodies.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{
		Jobs:           services.Jobs,
		Results:        services.Results,
		Blobs:          services.Blobs,
		MaxUploadBytes: services.MaxUploadBytes,
	}
	healthHandlers := &HealthHandlers{Cache: services.Cache}

	registerJobRoutes(mux, jobHandlers)
	mux.Handle("GET /health", http.HandlerFunc(healthHandlers.Health))
	mux.Handle("HEAD /health", http.HandlerFunc(healthHandlers.Health))

	return requestLogging(services.Logger)(mux)
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /api/jobs", h.SubmitJob)
	mux.HandleFunc("POST /api/jobs/upload", h.SubmitUpload)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetStatus)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.DeleteJob)
	mux.HandleFunc("GET /api/jobs/{id}/result", h.DownloadResult)
	mux.HandleFunc("GET /api/stats", h.Stats)
}
