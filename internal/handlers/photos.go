package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"photo-catalog/internal/catalog"
	"photo-catalog/internal/logging"
	"photo-catalog/internal/phototypes"
	"photo-catalog/internal/similarity"
)

// ListPhotosResponse wraps a photo listing with paging info.
type ListPhotosResponse struct {
	Photos []*catalog.Photo `json:"photos"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// ListPhotos lists photos matching query filters.
func (h *Handlers) ListPhotos(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	photos, err := h.catalog.QueryPhotos(r.Context(), filters)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	total, err := h.catalog.CountMatching(r.Context(), filters)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, ListPhotosResponse{
		Photos: photos,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

func parseFilters(r *http.Request) (catalog.QueryFilters, error) {
	q := r.URL.Query()
	f := catalog.QueryFilters{
		View:        catalog.SmartView(q.Get("view")),
		Search:      q.Get("search"),
		CameraMake:  q.Get("cameraMake"),
		CameraModel: q.Get("cameraModel"),
		Lens:        q.Get("lens"),
		Tag:         q.Get("tag"),
		PathPrefix:  q.Get("pathPrefix"),
		Sort:        phototypes.ResolveSortField(q.Get("sort")),
		Order:       phototypes.ResolveSortOrder(q.Get("order")),
	}

	if v := q.Get("minRating"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("minRating must be an integer")
		}
		f.MinRating = n
	}
	for param, dst := range map[string]**int64{"isoMin": &f.ISOMin, "isoMax": &f.ISOMax} {
		if v := q.Get(param); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return f, errors.New(param + " must be an integer")
			}
			*dst = &n
		}
	}
	if v := q.Get("hasGps"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("hasGps must be a boolean")
		}
		f.HasGPS = &b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("limit must be an integer")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("offset must be an integer")
		}
		f.Offset = n
	}
	for param, dst := range map[string]**int64{"from": &f.DateFrom, "to": &f.DateTo} {
		if v := q.Get(param); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				return f, errors.New(param + " must be a YYYY-MM-DD date")
			}
			unix := t.Unix()
			*dst = &unix
		}
	}
	return f, nil
}

// GetPhoto returns one photo with tags.
func (h *Handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	photo, err := h.catalog.GetPhoto(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, photo)
}

// UpdatePhotoRequest is the PATCH body for cull state changes.
type UpdatePhotoRequest struct {
	Rating   *int  `json:"rating,omitempty"`
	Picked   *bool `json:"picked,omitempty"`
	Rejected *bool `json:"rejected,omitempty"`
}

// UpdatePhoto changes rating or pick/reject flags on one photo.
func (h *Handlers) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req UpdatePhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	apply := func(err error) bool {
		if err == nil {
			return true
		}
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
		} else {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		}
		return false
	}

	if req.Rating != nil && !apply(h.catalog.SetRating(r.Context(), id, *req.Rating)) {
		return
	}
	if req.Picked != nil && !apply(h.catalog.SetPicked(r.Context(), id, *req.Picked)) {
		return
	}
	if req.Rejected != nil && !apply(h.catalog.SetRejected(r.Context(), id, *req.Rejected)) {
		return
	}

	photo, err := h.catalog.GetPhoto(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, photo)
}

// BatchUpdate applies one cull change to many photos.
func (h *Handlers) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	var update catalog.CullUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(update.PhotoIDs) == 0 {
		writeJSONError(w, "photoIds is required", http.StatusBadRequest)
		return
	}

	updated, err := h.catalog.BatchUpdateCull(r.Context(), update)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]int{"updated": updated})
}

// DeletePhoto removes a photo row and its derivatives. The original
// file on disk is never touched.
func (h *Handlers) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.catalog.DeletePhoto(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.derivs.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// ServeThumbnail serves the thumbnail JPEG for a photo.
func (h *Handlers) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	h.serveDerivative(w, r, h.derivs.ThumbnailPath(mux.Vars(r)["id"]))
}

// ServePreview serves the preview JPEG for a photo.
func (h *Handlers) ServePreview(w http.ResponseWriter, r *http.Request) {
	h.serveDerivative(w, r, h.derivs.PreviewPath(mux.Vars(r)["id"]))
}

func (h *Handlers) serveDerivative(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, path)
}

// SimilarPhotos ranks the catalog by embedding similarity to one
// photo and returns the top matches.
func (h *Handlers) SimilarPhotos(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	k := 0
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, "k must be an integer", http.StatusBadRequest)
			return
		}
		k = n
	}

	photo, err := h.catalog.GetPhoto(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(photo.Embedding) == 0 {
		writeJSONError(w, "photo has no embedding", http.StatusConflict)
		return
	}

	candidates, err := h.catalog.ListEmbeddings(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	matches := similarity.TopK(id, photo.Embedding, candidates, k)
	writeJSON(w, map[string]any{"photoId": id, "matches": matches})
}

// AddTagRequest is the body for POST /api/photos/{id}/tags.
type AddTagRequest struct {
	Tag string `json:"tag"`
}

// AddTag attaches a manual tag to a photo.
func (h *Handlers) AddTag(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req AddTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := h.catalog.GetPhoto(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.catalog.AddManualTag(r.Context(), id, req.Tag); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{"status": "created"})
}

// RemoveTag removes a manual tag from a photo.
func (h *Handlers) RemoveTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.catalog.RemoveManualTag(r.Context(), vars["id"], vars["tag"]); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportPhotos streams the filtered photo set as CSV.
func (h *Handlers) ExportPhotos(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="photos.csv"`)
	if err := h.catalog.ExportCSV(r.Context(), w, filters); err != nil {
		// Headers are already sent; all we can do is log.
		logging.Error("CSV export failed: %v", err)
	}
}

// SmartViews returns the photo count behind each smart view.
func (h *Handlers) SmartViews(w http.ResponseWriter, r *http.Request) {
	counts, err := h.catalog.SmartViewCounts(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, counts)
}

// ListTags returns every tag with its photo count.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.catalog.ListTags(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, tags)
}
