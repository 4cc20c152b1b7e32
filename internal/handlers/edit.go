package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"dataset-studio/internal/index"
	"dataset-studio/internal/session"
)

// EditRequest applies one operation to one item within an edit session.
type EditRequest struct {
	ID string            `json:"id"`
	Op session.Operation `json:"op"`
}

// editSession resolves the caller's session from the X-Session-ID header.
func (h *Handlers) editSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Get(r.Header.Get(SessionHeader))
	if err != nil {
		writeJSONError(w, SessionHeader+" header is required", http.StatusBadRequest)
		return nil, false
	}
	return sess, true
}

// ApplyEdit runs one caption or tag operation against one item and records
// it in the session's undo history.
func (h *Handlers) ApplyEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.editSession(w, r)
	if !ok {
		return
	}

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := req.Op.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	it, err := sess.Apply(req.ID, req.Op)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, it)
}

// Undo reverts the session's most recent edit or bulk run.
func (h *Handlers) Undo(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.editSession(w, r)
	if !ok {
		return
	}

	res, err := sess.Undo()
	if err != nil {
		if errors.Is(err, session.ErrNothingToUndo) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, res)
}

// Redo reapplies the session's most recently undone entry.
func (h *Handlers) Redo(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.editSession(w, r)
	if !ok {
		return
	}

	res, err := sess.Redo()
	if err != nil {
		if errors.Is(err, session.ErrNothingToRedo) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, res)
}

// BulkRequest runs one operation over a set of items. The set is either an
// explicit id list or a tag query resolved server-side at request time.
type BulkRequest struct {
	IDs  []string          `json:"ids,omitempty"`
	Tags []string          `json:"tags,omitempty"`
	Mode string            `json:"mode,omitempty"`
	Op   session.Operation `json:"op"`
}

// BulkApply runs one operation over many items as a single undoable unit.
func (h *Handlers) BulkApply(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.editSession(w, r)
	if !ok {
		return
	}

	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Op.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.IDs) > 0 && len(req.Tags) > 0 {
		writeJSONError(w, "ids and tags are mutually exclusive", http.StatusBadRequest)
		return
	}

	ids := req.IDs
	if len(ids) == 0 {
		if len(req.Tags) == 0 {
			writeJSONError(w, "ids or tags is required", http.StatusBadRequest)
			return
		}
		resolved, err := h.resolveTagQuery(w, r, req.Tags, req.Mode)
		if err != nil {
			return
		}
		if len(resolved) == 0 {
			writeJSON(w, &session.BulkResult{Items: []session.BulkItemResult{}})
			return
		}
		ids = resolved
	}

	res, err := sess.BulkApply(r.Context(), ids, req.Op)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, res)
}

// resolveTagQuery freezes a tag query into a concrete id list. Writes the
// error response itself; callers just bail on error.
func (h *Handlers) resolveTagQuery(w http.ResponseWriter, r *http.Request, tags []string, mode string) ([]string, error) {
	m := index.MatchMode(mode)
	if m != "" && m != index.MatchAll && m != index.MatchAny {
		err := errors.New("mode must be \"and\" or \"or\"")
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, err
	}
	for i := range tags {
		tags[i] = strings.TrimSpace(tags[i])
	}
	ids, err := h.idx.QueryTags(r.Context(), tags, m)
	if err != nil {
		writeStoreError(w, err)
		return nil, err
	}
	return ids, nil
}
