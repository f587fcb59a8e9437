// Package handlers exposes the catalog and import pipeline over HTTP.
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photo-catalog/internal/catalog"
	"photo-catalog/internal/media"
	"photo-catalog/internal/middleware"
	"photo-catalog/internal/pipeline"
)

// Handlers holds the dependencies shared by all HTTP endpoints.
type Handlers struct {
	catalog *catalog.Catalog
	imports *pipeline.Manager
	derivs  *media.DerivativeStore
}

// New creates the handler set.
func New(cat *catalog.Catalog, imports *pipeline.Manager, derivs *media.DerivativeStore) *Handlers {
	return &Handlers{catalog: cat, imports: imports, derivs: derivs}
}

// Router builds the HTTP route table with logging and metrics
// middleware applied to everything.
func (h *Handlers) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/import", h.StartImport).Methods("POST")
	api.HandleFunc("/import", h.CancelImport).Methods("DELETE")
	api.HandleFunc("/import/status", h.ImportStatus).Methods("GET")
	api.HandleFunc("/import/events", h.ImportEvents).Methods("GET")

	api.HandleFunc("/photos", h.ListPhotos).Methods("GET")
	api.HandleFunc("/photos/export.csv", h.ExportPhotos).Methods("GET")
	api.HandleFunc("/photos/{id}", h.GetPhoto).Methods("GET")
	api.HandleFunc("/photos/{id}", h.UpdatePhoto).Methods("PATCH")
	api.HandleFunc("/photos/{id}", h.DeletePhoto).Methods("DELETE")
	api.HandleFunc("/photos/{id}/thumbnail", h.ServeThumbnail).Methods("GET")
	api.HandleFunc("/photos/{id}/preview", h.ServePreview).Methods("GET")
	api.HandleFunc("/photos/{id}/similar", h.SimilarPhotos).Methods("GET")
	api.HandleFunc("/photos/{id}/tags", h.AddTag).Methods("POST")
	api.HandleFunc("/photos/{id}/tags/{tag}", h.RemoveTag).Methods("DELETE")

	api.HandleFunc("/photos:batch", h.BatchUpdate).Methods("POST")

	api.HandleFunc("/duplicates", h.DuplicateGroups).Methods("GET")
	api.HandleFunc("/views", h.SmartViews).Methods("GET")
	api.HandleFunc("/tags", h.ListTags).Methods("GET")

	var handler http.Handler = r
	handler = middleware.Metrics()(handler)
	handler = middleware.Logger()(handler)
	return handler
}
