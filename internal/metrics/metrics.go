package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Library index metrics
var (
	LibraryAssetsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_library_assets_total",
			Help: "Number of assets currently in the library index",
		},
	)

	LibraryAssetsByType = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asset_library_assets_by_type",
			Help: "Number of assets carrying each system tag",
		},
		[]string{"system_tag"},
	)

	LibraryScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_library_scans_total",
			Help: "Total number of library scans",
		},
		[]string{"kind", "status"}, // kind: "library" or "auto"
	)

	LibraryScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_library_scan_duration_seconds",
			Help:    "Full library scan duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	LibraryScanAssetErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_library_scan_asset_errors_total",
			Help: "Per-asset failures tolerated during bulk scans",
		},
	)

	LibraryLastScanTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_library_last_scan_timestamp_seconds",
			Help: "Unix timestamp of the last completed library scan",
		},
	)

	LibraryWatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_library_watcher_events_total",
			Help: "Filesystem watcher events by type",
		},
		[]string{"event"},
	)

	LibraryWatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_library_watcher_errors_total",
			Help: "Filesystem watcher errors",
		},
	)
)

// Search metrics
var (
	SearchQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_library_search_queries_total",
			Help: "Total number of search queries evaluated",
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_library_search_duration_seconds",
			Help:    "Search evaluation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	SearchResultsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_library_search_results_returned",
			Help:    "Number of assets returned per search",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)
)

// Stat cache metrics
var (
	StatCacheQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_library_stat_cache_queries_total",
			Help: "Total number of stat cache queries",
		},
		[]string{"operation", "status"},
	)

	StatCacheQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_library_stat_cache_query_duration_seconds",
			Help:    "Stat cache query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	StatCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_library_stat_cache_hits_total",
			Help: "Stat cache lookups answered from the cache",
		},
	)

	StatCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_library_stat_cache_misses_total",
			Help: "Stat cache lookups that required recomputation",
		},
	)
)

// Metadata store metrics
var (
	MetadataRepairsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_library_metadata_repairs_total",
			Help: "Corrupt metadata files renamed aside and replaced",
		},
	)

	MetadataWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_library_metadata_writes_total",
			Help: "Metadata sidecar files written",
		},
	)

	ClassifierScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_library_classifier_scans_total",
			Help: "System tag classifier invocations by outcome",
		},
		[]string{"outcome"}, // "recomputed" or "fresh"
	)
)

// Content hash metrics
var (
	HashesComputedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_library_hashes_computed_total",
			Help: "Content hashes computed",
		},
	)

	HashBytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_library_hash_bytes_read_total",
			Help: "Bytes read while computing content hashes",
		},
	)
)

// Auto-import metrics
var (
	AutoImportTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_library_auto_import_total",
			Help: "Auto-import attempts by source kind and status",
		},
		[]string{"kind", "status"},
	)

	AutoImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_library_auto_import_duration_seconds",
			Help:    "Auto-import duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
)
