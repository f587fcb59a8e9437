package handlers

import (
	"net/http"
	"strconv"

	"photo-catalog/internal/dupes"
)

// DuplicateGroupsResponse is the payload for GET /api/duplicates.
type DuplicateGroupsResponse struct {
	Threshold int           `json:"threshold"`
	Groups    []dupes.Group `json:"groups"`
}

// DuplicateGroups clusters the whole catalog into near-duplicate
// groups by perceptual hash distance.
func (h *Handlers) DuplicateGroups(w http.ResponseWriter, r *http.Request) {
	threshold := dupes.DefaultThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, "threshold must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if n > dupes.MaxThreshold {
			n = dupes.MaxThreshold
		}
		threshold = n
	}

	entries, err := h.catalog.ListHashes(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	groups := dupes.FindGroups(entries, threshold)
	if groups == nil {
		groups = []dupes.Group{}
	}
	writeJSON(w, DuplicateGroupsResponse{Threshold: threshold, Groups: groups})
}
