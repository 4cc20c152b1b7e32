package handlers

import (
	"dataset-studio/internal/dataset"
	"dataset-studio/internal/events"
	"dataset-studio/internal/index"
	"dataset-studio/internal/scanner"
	"dataset-studio/internal/session"
	"dataset-studio/internal/thumbs"
)

// SessionHeader carries the client's edit-session id on edit, undo and redo
// requests.
const SessionHeader = "X-Session-ID"

type Handlers struct {
	store    *dataset.Store
	idx      *index.Index
	sessions *session.Manager
	thumbs   *thumbs.Cache
	scanner  *scanner.Scanner
	hub      *events.Hub
}

func New(store *dataset.Store, idx *index.Index, sessions *session.Manager, cache *thumbs.Cache, sc *scanner.Scanner, hub *events.Hub) *Handlers {
	return &Handlers{
		store:    store,
		idx:      idx,
		sessions: sessions,
		thumbs:   cache,
		scanner:  sc,
		hub:      hub,
	}
}
