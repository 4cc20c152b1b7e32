package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"dataset-studio/internal/dataset"
	"dataset-studio/internal/logging"
	"dataset-studio/internal/metrics"
)

var (
	// ErrNothingToUndo is returned when the undo stack is empty.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo is returned when the redo stack is empty.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// DefaultUndoDepth bounds the history when no depth is configured.
const DefaultUndoDepth = 100

// step is one item-level edit inside a history entry: the forward operation
// for redo, the inverse captured at apply time for undo, and the sidecar
// fingerprints on either side of the write. Replays CAS against the recorded
// fingerprint, so an item edited externally since the edit reports a
// conflict instead of being clobbered.
type step struct {
	id       string
	forward  Operation
	inverse  Operation
	beforeFP dataset.Fingerprint
	afterFP  dataset.Fingerprint
}

// entry is one undoable unit: a single edit, or a whole bulk run.
type entry struct {
	label string
	steps []step
}

// StepResult reports the outcome of replaying one step during undo or redo.
type StepResult struct {
	ID     string `json:"id"`
	Status string `json:"status"` // applied, conflict, error
	Error  string `json:"error,omitempty"`
}

// HistoryResult reports the outcome of one undo or redo invocation.
type HistoryResult struct {
	Label string       `json:"label"`
	Steps []StepResult `json:"steps"`
}

// Session holds one client's edit history. All methods are safe for
// concurrent use, though a session is normally driven by a single client.
type Session struct {
	store *dataset.Store
	depth int

	mu       sync.Mutex
	undo     []entry
	redo     []entry
	lastUsed time.Time
}

func newSession(store *dataset.Store, depth int) *Session {
	if depth <= 0 {
		depth = DefaultUndoDepth
	}
	return &Session{store: store, depth: depth, lastUsed: time.Now()}
}

// applyResult is one successful applyOnce outcome.
type applyResult struct {
	item    *dataset.Item
	inverse Operation
	before  dataset.Fingerprint
	after   dataset.Fingerprint
	changed bool
}

// applyOnce runs one operation against one item with a single conflict
// retry: on ErrConflict the item is reloaded and the operation recomputed
// against the fresh state, so an edit that still makes sense after an
// external change merges instead of failing.
func (s *Session) applyOnce(id string, op Operation) (applyResult, error) {
	for attempt := 0; ; attempt++ {
		it, err := s.store.Load(id)
		if err != nil {
			return applyResult{}, err
		}

		caption, tags, inverse, changed := op.applyTo(it)
		if !changed {
			return applyResult{item: it}, nil
		}

		updated, err := s.store.Write(id, caption, tags, it.SidecarFP)
		if errors.Is(err, dataset.ErrConflict) {
			metrics.EditConflictsTotal.Inc()
			if attempt == 0 {
				logging.Debug("Write conflict on %s, retrying against fresh state", id)
				continue
			}
			return applyResult{}, err
		}
		if err != nil {
			return applyResult{}, err
		}
		return applyResult{
			item:    updated,
			inverse: inverse,
			before:  it.SidecarFP,
			after:   updated.SidecarFP,
			changed: true,
		}, nil
	}
}

// Apply runs one operation against one item and records it in the undo
// history. A no-op (the item already satisfies the operation) returns the
// unchanged item and leaves the history alone.
func (s *Session) Apply(id string, op Operation) (*dataset.Item, error) {
	if err := op.Validate(); err != nil {
		metrics.ObserveEdit(string(op.Kind), err)
		return nil, err
	}

	res, err := s.applyOnce(id, op)
	metrics.ObserveEdit(string(op.Kind), err)
	if err != nil {
		return nil, err
	}
	if !res.changed {
		return res.item, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	s.push(entry{
		label: string(op.Kind),
		steps: []step{{
			id:       id,
			forward:  op,
			inverse:  res.inverse,
			beforeFP: res.before,
			afterFP:  res.after,
		}},
	})
	return res.item, nil
}

// push appends a history entry, clearing the redo stack and trimming the
// oldest entries past the depth bound. Caller holds s.mu.
func (s *Session) push(e entry) {
	s.undo = append(s.undo, e)
	if len(s.undo) > s.depth {
		s.undo = s.undo[len(s.undo)-s.depth:]
	}
	s.redo = nil
}

// Undo reverts the most recent history entry. Steps are replayed in reverse
// order; a step whose item changed externally since the edit reports a
// conflict and is skipped rather than clobbering the external change.
func (s *Session) Undo() (*HistoryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()

	if len(s.undo) == 0 {
		metrics.UndoTotal.WithLabelValues("undo", "empty").Inc()
		return nil, ErrNothingToUndo
	}
	e := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]

	result := &HistoryResult{Label: e.label, Steps: make([]StepResult, 0, len(e.steps))}
	for i := len(e.steps) - 1; i >= 0; i-- {
		result.Steps = append(result.Steps, s.replay(&e.steps[i], true))
	}

	s.redo = append(s.redo, e)
	metrics.UndoTotal.WithLabelValues("undo", "success").Inc()
	return result, nil
}

// Redo reapplies the most recently undone entry.
func (s *Session) Redo() (*HistoryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()

	if len(s.redo) == 0 {
		metrics.UndoTotal.WithLabelValues("redo", "empty").Inc()
		return nil, ErrNothingToRedo
	}
	e := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]

	result := &HistoryResult{Label: e.label, Steps: make([]StepResult, 0, len(e.steps))}
	for i := range e.steps {
		result.Steps = append(result.Steps, s.replay(&e.steps[i], false))
	}

	s.undo = append(s.undo, e)
	metrics.UndoTotal.WithLabelValues("redo", "success").Inc()
	return result, nil
}

// replay applies one recorded step during undo (inverse op, expecting the
// post-edit fingerprint) or redo (forward op, expecting the pre-edit one).
// The CAS runs against the recorded fingerprint, so an item edited
// externally since reports a conflict and is skipped; merging history
// against external edits would silently lose data. Successful replays
// update the step's fingerprints so the opposite direction keeps working.
func (s *Session) replay(st *step, undo bool) StepResult {
	op, expect := st.forward, st.beforeFP
	if undo {
		op, expect = st.inverse, st.afterFP
	}

	it, err := s.store.Load(st.id)
	if err != nil {
		return StepResult{ID: st.id, Status: "error", Error: err.Error()}
	}

	caption, tags, _, changed := op.applyTo(it)
	if !changed {
		// Already in the target state; just resync the fingerprint.
		if undo {
			st.beforeFP = it.SidecarFP
		} else {
			st.afterFP = it.SidecarFP
		}
		return StepResult{ID: st.id, Status: "applied"}
	}

	updated, err := s.store.Write(st.id, caption, tags, expect)
	if err != nil {
		if errors.Is(err, dataset.ErrConflict) {
			metrics.EditConflictsTotal.Inc()
			return StepResult{ID: st.id, Status: "conflict", Error: err.Error()}
		}
		return StepResult{ID: st.id, Status: "error", Error: err.Error()}
	}
	if undo {
		st.beforeFP = updated.SidecarFP
	} else {
		st.afterFP = updated.SidecarFP
	}
	return StepResult{ID: st.id, Status: "applied"}
}

// Depths returns the current undo and redo stack sizes.
func (s *Session) Depths() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo), len(s.redo)
}

// Manager hands out sessions keyed by client-supplied session id and prunes
// ones that have gone idle.
type Manager struct {
	store *dataset.Store
	depth int

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session registry. depth bounds each session's undo
// history; zero means DefaultUndoDepth.
func NewManager(store *dataset.Store, depth int) *Manager {
	return &Manager{
		store:    store,
		depth:    depth,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for the given id, creating it on first use.
func (m *Manager) Get(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = newSession(m.store, m.depth)
		m.sessions[id] = s
		logging.Debug("Created edit session %s", id)
	}
	return s, nil
}

// PruneIdle drops sessions unused for longer than maxAge and returns how
// many were removed. Their histories are gone; the edits themselves live on
// disk and are unaffected.
func (m *Manager) PruneIdle(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastUsed.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			pruned++
		}
	}
	if pruned > 0 {
		logging.Info("Pruned %d idle edit sessions", pruned)
	}
	return pruned
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
