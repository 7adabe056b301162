package handlers

import (
	"net/http"
	"sync"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
	"github.com/kozaktomas/attendance-scanner/internal/pipeline"
)

// Event is one message pushed to station listeners.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster fans events out to listeners. Slow listeners miss events
// rather than block the sender.
type EventBroadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes and closes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Listeners returns the number of connected listeners.
func (b *EventBroadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Station exposes a running camera loop: its status and a live feed of
// scan results.
type Station struct {
	EventBroadcaster
	status func() pipeline.Status
}

// NewStation creates a station reporting the given status source.
func NewStation(status func() pipeline.Status) *Station {
	return &Station{status: status}
}

// Publish broadcasts a scan result. Frames without any code are not
// published. It is meant to be the runner's OnResult callback.
func (s *Station) Publish(res pipeline.Result) {
	if res.Kind == pipeline.Rejected && res.Reason == pipeline.ReasonNoCode {
		return
	}
	s.SendEvent(Event{Type: "scan", Message: res.Message(), Data: res})
}

// Status handles GET /station.
func (s *Station) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.status())
}

// Events handles GET /station/events as a server-sent event stream.
func (s *Station) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := s.AddListener()
	defer s.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", s.status())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}
