// Package notify fans build notifications out to live-reload clients over
// Server-Sent Events.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Event types.
const (
	TypeConnected = "connected"
	TypeUpdate    = "update"
	TypeError     = "error"
)

// Event is one frame on the event stream.
type Event struct {
	Type      string `json:"type"`
	File      string `json:"file,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix ms
	BuildID   string `json:"build_id,omitempty"`
	Pages     int    `json:"pages,omitempty"`
	Total     string `json:"total,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Update builds an update event stamped with the current time.
func Update(file, buildID string) Event {
	return Event{Type: TypeUpdate, File: file, BuildID: buildID, Timestamp: time.Now().UnixMilli()}
}

const subscriberBuffer = 16

// Hub delivers every published event to every current subscriber. Delivery
// never blocks the publisher; a subscriber whose buffer is full misses the
// event.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	log  *slog.Logger

	// OnChange, when set, receives the subscriber count after every
	// subscribe and unsubscribe.
	OnChange func(n int)
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		subs: make(map[chan Event]struct{}),
		log:  log,
	}
}

// Subscribe registers a new subscriber. The returned func unsubscribes and
// closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.changed(n)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			n := len(h.subs)
			h.mu.Unlock()
			h.changed(n)
		})
	}
}

// Publish sends ev to all subscribers and returns how many received it.
func (h *Hub) Publish(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for ch := range h.subs {
		select {
		case ch <- ev:
			delivered++
		default:
			h.log.Warn("dropping event for slow subscriber", "type", ev.Type, "file", ev.File)
		}
	}
	return delivered
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) changed(n int) {
	if h.OnChange != nil {
		h.OnChange(n)
	}
}

// ServeHTTP streams events as text/event-stream until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	if err := writeEvent(w, Event{Type: TypeConnected}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				h.log.Debug("event stream write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
