package handlers

import (
	"net/http"
	"runtime"

	"photo-catalog/internal/media"
	"photo-catalog/internal/pipeline"
	"photo-catalog/internal/startup"
)

// HealthResponse contains the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Importing   bool   `json:"importing"`
	TotalPhotos int    `json:"totalPhotos"`
	Accelerated bool   `json:"accelerated"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports service health and basic catalog stats.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	total, err := h.catalog.CountPhotos(r.Context())
	if err != nil {
		writeJSONError(w, "catalog unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, HealthResponse{
		Status:       "healthy",
		Version:      startup.Version,
		Importing:    h.imports.Status().State == pipeline.StateRunning,
		TotalPhotos:  total,
		Accelerated:  media.IsVipsAvailable(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	})
}
