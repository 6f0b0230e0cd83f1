package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event is a message pushed to every client watching a café
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// cafeEvent routes an event to one café room
type cafeEvent struct {
	CafeID uuid.UUID
	Event  Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by café ID
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *cafeEvent

	// done is closed when Run returns
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *cafeEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing
// every client. Call it as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for cafeID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, cafeID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.cafeID] == nil {
				h.rooms[client.cafeID] = make(map[*Client]bool)
			}
			h.rooms[client.cafeID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.CafeID] {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it rather than stall the room
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove closes client and deletes it from its room. Caller holds mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.cafeID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.cafeID)
	}
}

// join registers client with its café room. It reports false once the hub
// has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters client. After shutdown Run has already closed it.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToCafe sends an event to all clients subscribed to a café.
// Events sent after the hub stopped are dropped.
func (h *Hub) BroadcastToCafe(cafeID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &cafeEvent{CafeID: cafeID, Event: event}:
	case <-h.done:
	}
}

// ClientCount returns the number of clients watching a café
func (h *Hub) ClientCount(cafeID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[cafeID])
}
