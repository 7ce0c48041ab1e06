package plugins

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Event types pushed to status subscribers
const (
	EventStatus   = "status"
	EventRegister = "register"
)

// subscriberBuffer bounds how far a slow client may fall behind
const subscriberBuffer = 16

// Event is one message on the status stream
type Event struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data,omitempty"`
}

// EventHub fans tuner events out to websocket subscribers
type EventHub struct {
	subscribers   map[string]*subscriber
	subscribersMu sync.RWMutex
}

// subscriber represents one connected client
type subscriber struct {
	ID     string
	send   chan []byte
	closed bool
}

// NewEventHub creates an empty hub
func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers a new client and returns its ID and message channel
func (h *EventHub) Subscribe() (string, <-chan []byte) {
	sub := &subscriber{
		ID:   uuid.New().String(),
		send: make(chan []byte, subscriberBuffer),
	}

	h.subscribersMu.Lock()
	h.subscribers[sub.ID] = sub
	h.subscribersMu.Unlock()

	slog.Debug("Event subscriber added", "id", sub.ID)
	return sub.ID, sub.send
}

// Unsubscribe removes a client and closes its channel
func (h *EventHub) Unsubscribe(id string) {
	h.subscribersMu.Lock()
	defer h.subscribersMu.Unlock()

	h.closeSubscriberUnsafe(id)
}

// closeSubscriberUnsafe must be called with subscribersMu held
func (h *EventHub) closeSubscriberUnsafe(id string) {
	sub, ok := h.subscribers[id]
	if !ok {
		return
	}
	if !sub.closed {
		close(sub.send)
		sub.closed = true
	}
	delete(h.subscribers, id)
	slog.Debug("Event subscriber removed", "id", id)
}

// Count returns the number of connected subscribers
func (h *EventHub) Count() int {
	h.subscribersMu.RLock()
	defer h.subscribersMu.RUnlock()
	return len(h.subscribers)
}

// Publish sends an event to every subscriber. A subscriber whose buffer is
// full misses the event.
func (h *EventHub) Publish(eventType string, data interface{}) {
	msg, err := json.Marshal(Event{
		Type: eventType,
		Time: time.Now().UTC(),
		Data: data,
	})
	if err != nil {
		slog.Error("Failed to encode event", "type", eventType, "error", err)
		return
	}

	h.subscribersMu.RLock()
	defer h.subscribersMu.RUnlock()

	for id, sub := range h.subscribers {
		select {
		case sub.send <- msg:
		default:
			slog.Warn("Dropping event for slow subscriber", "id", id, "type", eventType)
		}
	}
}

// Close disconnects every subscriber
func (h *EventHub) Close() {
	h.subscribersMu.Lock()
	defer h.subscribersMu.Unlock()

	for id := range h.subscribers {
		h.closeSubscriberUnsafe(id)
	}
}

// Handler returns the websocket endpoint. initial is sent once on connect.
func (h *EventHub) Handler(initial func() interface{}) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		id, send := h.Subscribe()
		defer h.Unsubscribe(id)

		if err := c.WriteJSON(Event{Type: EventStatus, Time: time.Now().UTC(), Data: initial()}); err != nil {
			return
		}

		// Reader detects the client going away
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-send:
				if !ok {
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					slog.Debug("Event write failed", "id", id, "error", err)
					return
				}
			case <-done:
				return
			}
		}
	})
}
