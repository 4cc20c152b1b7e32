package handlers

import (
	"net/http"
	"strconv"

	"dataset-studio/internal/thumbs"
)

const maxThumbnailDim = 1024

// GetThumbnail serves a cached thumbnail rendition of the item's image.
// ?size bounds the longer edge; the default is thumbs.DefaultMaxDim.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	maxDim := thumbs.DefaultMaxDim
	if size := r.URL.Query().Get("size"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 || n > maxThumbnailDim {
			writeJSONError(w, "size must be between 1 and 1024", http.StatusBadRequest)
			return
		}
		maxDim = n
	}

	it, err := h.store.Load(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	data, err := h.thumbs.Get(it.ID, it.ImageFP, h.store.AbsImagePath(it), maxDim)
	if err != nil {
		writeJSONError(w, "thumbnail render failed", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	// Fingerprint-keyed cache means a changed image produces new bytes, so
	// short client caching is safe.
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := w.Write(data); err != nil {
		return
	}
}
