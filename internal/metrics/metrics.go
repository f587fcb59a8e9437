package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_catalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_catalog_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_catalog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Pipeline metrics
var (
	ImportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_catalog_imports_total",
			Help: "Total number of import jobs started",
		},
	)

	ImportRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_catalog_import_running",
			Help: "Whether an import job is currently running (1 = running, 0 = idle)",
		},
	)

	ImportLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_catalog_import_last_duration_seconds",
			Help: "Duration of the last completed import job in seconds",
		},
	)

	FilesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_catalog_files_discovered_total",
			Help: "Total number of candidate files discovered across imports",
		},
	)

	StageItemsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_catalog_stage_items_completed_total",
			Help: "Total number of work items completed per stage",
		},
		[]string{"stage"},
	)

	StageItemsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_catalog_stage_items_failed_total",
			Help: "Total number of work items failed per stage",
		},
		[]string{"stage"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_catalog_stage_duration_seconds",
			Help:    "Per-item processing duration per stage",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	StageWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_catalog_stage_workers",
			Help: "Configured worker count per stage",
		},
		[]string{"stage"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_catalog_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_catalog_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Similarity metrics
var (
	DuplicateScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_catalog_duplicate_scans_total",
			Help: "Total number of duplicate grouping requests",
		},
	)

	DuplicateScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_catalog_duplicate_scan_duration_seconds",
			Help:    "Duplicate grouping duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SimilarityQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_catalog_similarity_queries_total",
			Help: "Total number of similarity ranking requests",
		},
	)
)
