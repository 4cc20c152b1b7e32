package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_studio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Tag index metrics
var (
	IndexQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_index_queries_total",
			Help: "Total number of tag index queries",
		},
		[]string{"operation", "status"},
	)

	IndexQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_studio_index_query_duration_seconds",
			Help:    "Tag index query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	IndexItemsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_index_items",
			Help: "Number of items currently in the tag index",
		},
	)

	IndexTagsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_index_tags",
			Help: "Number of distinct tags currently in the tag index",
		},
	)

	IndexStaleRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_studio_index_stale_refreshes_total",
			Help: "Number of items lazily re-indexed after detected drift",
		},
	)
)

// Edit pipeline metrics
var (
	EditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_edits_total",
			Help: "Total number of edit operations applied",
		},
		[]string{"kind", "status"},
	)

	EditConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_studio_edit_conflicts_total",
			Help: "Edits that lost the optimistic-concurrency check after retry",
		},
	)

	UndoTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_undo_total",
			Help: "Undo and redo invocations",
		},
		[]string{"action", "status"},
	)

	BulkRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_studio_bulk_runs_total",
			Help: "Bulk operations started",
		},
	)

	BulkItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_bulk_items_total",
			Help: "Per-item outcomes of bulk operations",
		},
		[]string{"status"},
	)
)

// Scanner metrics
var (
	ScannerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_studio_scanner_runs_total",
			Help: "Total number of dataset scans",
		},
	)

	ScannerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_scanner_last_run_timestamp",
			Help: "Unix timestamp of the last completed scan",
		},
	)

	ScannerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_scanner_last_run_duration_seconds",
			Help: "Duration of the last completed scan",
		},
	)

	ScannerItemsSeen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_scanner_items_seen",
			Help: "Items found by the last completed scan",
		},
	)

	ScannerDriftTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_scanner_drift_total",
			Help: "External changes reconciled, by kind",
		},
		[]string{"kind"},
	)

	ScannerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_scanner_running",
			Help: "Whether a scan is currently in progress (1 = running)",
		},
	)

	ScannerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_studio_scanner_errors_total",
			Help: "Total number of scanner errors",
		},
	)
)

// Thumbnail cache metrics
var (
	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_studio_thumbnail_cache_hits_total",
			Help: "Thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_studio_thumbnail_cache_misses_total",
			Help: "Thumbnail cache misses",
		},
	)

	ThumbnailCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_thumbnail_cache_bytes",
			Help: "Bytes currently held by the thumbnail cache",
		},
	)

	ThumbnailCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_thumbnail_cache_entries",
			Help: "Entries currently held by the thumbnail cache",
		},
	)

	ThumbnailEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_studio_thumbnail_evictions_total",
			Help: "Thumbnail cache evictions under the byte budget",
		},
	)

	ThumbnailRenderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_thumbnail_renders_total",
			Help: "Thumbnail render attempts by outcome",
		},
		[]string{"status"},
	)

	ThumbnailRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dataset_studio_thumbnail_render_duration_seconds",
			Help:    "Thumbnail render duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// Event push metrics
var (
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_events_published_total",
			Help: "Change notifications published to the event hub",
		},
		[]string{"type"},
	)

	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_studio_events_dropped_total",
			Help: "Change notifications dropped for slow subscribers",
		},
	)

	EventsSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_event_subscribers",
			Help: "Currently connected event subscribers",
		},
	)
)

// Filesystem retry metrics (NFS resilience on read paths)
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_fs_retry_attempts_total",
			Help: "Filesystem operation retry attempts",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_fs_retry_success_total",
			Help: "Filesystem operations that succeeded after retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_fs_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_studio_fs_stale_errors_total",
			Help: "NFS stale file handle errors observed",
		},
		[]string{"operation"},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_studio_memory_paused",
			Help: "Whether background processing is paused for memory pressure (0 or 1)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_studio_memory_forced_gc_total",
			Help: "Garbage collections forced by the memory monitor",
		},
	)
)
