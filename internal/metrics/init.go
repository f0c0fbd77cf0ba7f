package metrics

// InitializeMetrics pre-populates expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, kind := range []string{"library", "auto"} {
		for _, status := range []string{"success", "error"} {
			LibraryScansTotal.WithLabelValues(kind, status)
		}
	}

	for _, tag := range []string{"blend", "image", "zip", "sbsar", "no_type"} {
		LibraryAssetsByType.WithLabelValues(tag)
	}

	for _, event := range []string{"create", "write", "remove", "rename", "chmod", "unknown"} {
		LibraryWatcherEventsTotal.WithLabelValues(event)
	}

	for _, op := range []string{"get", "put", "delete"} {
		StatCacheQueryDuration.WithLabelValues(op)
		for _, status := range []string{"success", "error"} {
			StatCacheQueryTotal.WithLabelValues(op, status)
		}
	}

	for _, outcome := range []string{"recomputed", "fresh"} {
		ClassifierScansTotal.WithLabelValues(outcome)
	}

	for _, kind := range []string{"archive", "image", "folder", "blend", "sbsar", "file"} {
		for _, status := range []string{"success", "error"} {
			AutoImportTotal.WithLabelValues(kind, status)
		}
	}
}
