package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"dataset-studio/internal/dataset"
	"dataset-studio/internal/index"

	"github.com/gorilla/mux"
)

// ListItems returns one page of items matching the query. Supported
// parameters: tags (comma separated), mode (and/or), caption (substring
// search), cursor, limit.
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode := index.MatchMode(q.Get("mode"))
	if mode != "" && mode != index.MatchAll && mode != index.MatchAny {
		writeJSONError(w, "mode must be \"and\" or \"or\"", http.StatusBadRequest)
		return
	}

	f := index.Filter{
		Mode:    mode,
		Caption: q.Get("caption"),
		Cursor:  q.Get("cursor"),
	}
	if tags := q.Get("tags"); tags != "" {
		f.Tags = dataset.SplitTags(tags)
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	page, err := h.idx.List(r.Context(), f)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	for i := range page.Items {
		page.Items[i].ThumbnailURL = "/api/items/" + page.Items[i].ID + "/thumbnail"
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, page)
}

// GetItem returns the full item, re-read from disk so external edits are
// always visible.
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	it, err := h.store.Load(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, it)
}

// CreateItemRequest registers a sidecar for an image already on disk.
type CreateItemRequest struct {
	ID      string   `json:"id"`
	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`
}

// CreateItem adopts an image file dropped into the dataset directory and
// writes its initial sidecar.
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}
	for _, tag := range req.Tags {
		if err := dataset.ValidateTag(tag); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	it, err := h.store.Create(req.ID, req.Caption, req.Tags)
	if err != nil {
		if strings.Contains(err.Error(), "item id") {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, it)
}

// DeleteItem removes an item. The default is a soft delete (both files are
// renamed with a recoverable suffix); ?hard=true unlinks them.
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	hard := r.URL.Query().Get("hard") == "true"
	if err := h.store.Delete(id, !hard); err != nil {
		writeStoreError(w, err)
		return
	}

	if h.thumbs != nil {
		h.thumbs.Invalidate(id)
	}
	writeJSONStatus(w, "deleted")
}

// GetImage streams the original image file.
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	it, err := h.store.Load(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	http.ServeFile(w, r, h.store.AbsImagePath(it))
}

// itemID extracts and validates the {id} path variable.
func itemID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := dataset.CleanID(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return id, true
}
