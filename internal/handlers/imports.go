package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"photo-catalog/internal/logging"
	"photo-catalog/internal/pipeline"
)

// StartImportRequest is the body for POST /api/import.
type StartImportRequest struct {
	SourceDir string `json:"sourceDir"`
}

// StartImport launches an import job. Returns 409 when one is
// already running.
func (h *Handlers) StartImport(w http.ResponseWriter, r *http.Request) {
	var req StartImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SourceDir == "" {
		writeJSONError(w, "sourceDir is required", http.StatusBadRequest)
		return
	}

	batchID, err := h.imports.StartImport(r.Context(), req.SourceDir)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"batchId": batchID})
}

// CancelImport stops the running import job.
func (h *Handlers) CancelImport(w http.ResponseWriter, _ *http.Request) {
	if err := h.imports.Cancel(); err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "cancelling"})
}

// ImportStatus returns the current or last import snapshot.
func (h *Handlers) ImportStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.imports.Status())
}

// ImportEvents streams progress snapshots as server-sent events until
// the import finishes or the client disconnects.
func (h *Handlers) ImportEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel, err := h.imports.Subscribe()
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case snap, open := <-events:
			if !open {
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if err := enc.Encode(snap); err != nil {
				logging.Debug("progress stream write failed: %v", err)
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
