// Package hub pushes upload list changes to connected whistleblower clients
// over websockets. Clients are grouped per user; an event for a user reaches
// every connection that user has open.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/logging"
)

type message struct {
	userID  string
	payload []byte
}

// Hub maintains active clients and fans out events.
type Hub struct {
	clients    map[string]map[*Client]bool // userID -> clients
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     logging.Logger
}

func New(logger logging.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("module", "hub"),
	}
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for userID, clients := range h.clients {
				for c := range clients {
					close(c.send)
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.userID] == nil {
				h.clients[c.userID] = make(map[*Client]bool)
			}
			h.clients[c.userID][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients[m.userID] {
				select {
				case c.send <- m.payload:
				default:
					// slow consumer
					h.logger.Warn(ctx, "dropping websocket client", "user_id", m.userID)
					h.remove(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(c *Client) {
	clients, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.clients, c.userID)
	}
}

// Publish queues ev for userID. It never blocks: when the queue is full the
// event is dropped and clients catch up on their next poll.
func (h *Hub) Publish(ctx context.Context, userID string, ev api.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error(ctx, "marshal event", "error", err)
		return
	}
	select {
	case h.broadcast <- message{userID: userID, payload: b}:
	default:
		h.logger.Warn(ctx, "event queue full, dropping", "type", ev.Type, "user_id", userID)
	}
}

// Connected reports how many connections userID currently has.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
