package handlers

import (
	"net/http"

	"dataset-studio/internal/index"
)

// GetAllTags returns the tag catalog with per-tag item counts.
func (h *Handlers) GetAllTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.idx.AllTags(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if tags == nil {
		tags = []index.TagCount{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, tags)
}

// GetStats returns dataset-level statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.idx.GetStats(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stats)
}

// Resync triggers an on-demand reconciliation pass against the directory.
func (h *Handlers) Resync(w http.ResponseWriter, r *http.Request) {
	res, err := h.scanner.Resync(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, res)
}
