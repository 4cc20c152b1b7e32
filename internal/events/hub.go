// Package events fans out dataset change notifications to connected
// clients. Delivery is best effort: a subscriber that can't keep up loses
// events rather than stalling the writers.
package events

import (
	"sync"
	"time"

	"dataset-studio/internal/logging"
	"dataset-studio/internal/metrics"
)

// Event types pushed to clients.
const (
	TypeItemChanged     = "itemChanged"
	TypeItemDeleted     = "itemDeleted"
	TypeDatasetReloaded = "datasetReloaded"
)

// Event is one change notification.
type Event struct {
	Type string    `json:"type"`
	ID   string    `json:"id,omitempty"`
	Time time.Time `json:"time"`
	// ItemCount accompanies datasetReloaded events.
	ItemCount int `json:"itemCount,omitempty"`
}

// subscriber buffer size. Small on purpose: the client protocol is "refetch
// on notification", so losing an event under pressure costs one refresh.
const subscriberBuffer = 16

// Hub is the fan-out point. One per process.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	stopped bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new listener. The returned cancel function must be
// called when the listener goes away; it is safe to call more than once.
// The event channel is closed on cancel or hub stop.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	metrics.EventsSubscribers.Set(float64(len(h.subs)))
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			metrics.EventsSubscribers.Set(float64(len(h.subs)))
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking. Slow
// subscribers drop the event.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}

	metrics.EventsPublishedTotal.WithLabelValues(ev.Type).Inc()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			metrics.EventsDroppedTotal.Inc()
		}
	}
}

// PublishItemChanged notifies that an item's sidecar or image changed.
func (h *Hub) PublishItemChanged(id string) {
	h.Publish(Event{Type: TypeItemChanged, ID: id})
}

// PublishItemDeleted notifies that an item was removed from the dataset.
func (h *Hub) PublishItemDeleted(id string) {
	h.Publish(Event{Type: TypeItemDeleted, ID: id})
}

// PublishDatasetReloaded notifies that the dataset changed wholesale (scan
// or resync found differences) and clients should refetch their views.
func (h *Hub) PublishDatasetReloaded(itemCount int) {
	h.Publish(Event{Type: TypeDatasetReloaded, ItemCount: itemCount})
}

// Stop closes every subscriber channel and rejects future subscriptions.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan Event]struct{})
	metrics.EventsSubscribers.Set(0)
	logging.Debug("Event hub stopped")
}

// Len returns the current subscriber count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
