// Package hub fans slew test events out to websocket clients and serves
// commands that start and cancel tests.
package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/w1xm/slew_interface/slewtest"
)

// Event types sent to clients.
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventTimeout  = "timeout"
	EventError    = "error"
)

type Event struct {
	Type     string             `json:"type"`
	Time     time.Time          `json:"time"`
	Position *slewtest.Position `json:"position,omitempty"`
	Result   *slewtest.Result   `json:"result,omitempty"`
	Label    string             `json:"label,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Status is the most recent state seen by a Hub.
type Status struct {
	Running   bool               `json:"running"`
	Position  *slewtest.Position `json:"position,omitempty"`
	Last      *slewtest.Result   `json:"last_result,omitempty"`
	LastEvent *Event             `json:"last_event,omitempty"`
}

// Hub is a slewtest.Observer that broadcasts every event as JSON. Slow
// clients miss messages rather than block the runner.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	status  Status

	now func() time.Time
}

var _ slewtest.Observer = (*Hub)(nil)

func New() *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		now:     time.Now,
	}
}

// Subscribe returns a channel of encoded events and a func that must be
// called when the client goes away.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Status returns a copy of the latest state. Running is left to the caller.
func (h *Hub) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *Hub) publish(e Event) {
	e.Time = h.now()
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("encoding %s event: %v", e.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	switch e.Type {
	case EventProgress:
		h.status.Position = e.Position
	case EventComplete:
		h.status.Last = e.Result
	}
	if e.Type != EventProgress {
		h.status.LastEvent = &e
	}
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
		}
	}
}

func (h *Hub) Progress(altitude, azimuth float64) {
	h.publish(Event{Type: EventProgress, Position: &slewtest.Position{Altitude: altitude, Azimuth: azimuth}})
}

func (h *Hub) Complete(r slewtest.Result) {
	h.publish(Event{Type: EventComplete, Label: r.Label, Result: &r})
}

func (h *Hub) Timeout(label string) {
	h.publish(Event{Type: EventTimeout, Label: label})
}

func (h *Hub) Error(err error) {
	h.publish(Event{Type: EventError, Error: err.Error()})
}
