package httpx

import (
	"net/http"

	"github.com/tailorhq/resume-tailor-api/internal/core"
)

// HealthHandlers reports service readiness. The cache check is optional so
// the handler stays usable in worker-only deployments.
type HealthHandlers struct {
	Cache core.CacheRepository
}

// Health returns 200 when the service can take traffic and 503 when a
// required dependency is unreachable.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	if h.Cache != nil {
		if err := h.Cache.Health(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["cache"] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}
	WriteJSON(w, status, body)
}
