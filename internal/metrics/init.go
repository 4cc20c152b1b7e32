package metrics

// InitializeMetrics pre-populates expected label combinations so that every
// metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range []string{"success", "error"} {
		for _, op := range []string{"list_items", "query_tags", "all_tags", "upsert_item", "remove_item", "stats", "rebuild"} {
			IndexQueryTotal.WithLabelValues(op, status)
		}
		for _, kind := range []string{"setCaption", "replaceCaption", "setTags", "addTags", "prependTags", "removeTags", "renameTag"} {
			EditsTotal.WithLabelValues(kind, status)
		}
		for _, action := range []string{"undo", "redo"} {
			UndoTotal.WithLabelValues(action, status)
		}
	}

	for _, status := range []string{"applied", "skipped", "failed"} {
		BulkItemsTotal.WithLabelValues(status)
	}

	for _, kind := range []string{"added", "changed", "removed"} {
		ScannerDriftTotal.WithLabelValues(kind)
	}

	for _, status := range []string{"success", "error"} {
		ThumbnailRenderTotal.WithLabelValues(status)
	}

	for _, typ := range []string{"itemChanged", "itemDeleted", "datasetReloaded"} {
		EventsPublishedTotal.WithLabelValues(typ)
	}

	for _, op := range []string{"stat", "open", "readdir"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}
