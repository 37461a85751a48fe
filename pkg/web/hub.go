// Package web provides the local bridge server: a fiber app exposing
// session control endpoints and a websocket stream of pipeline events for
// UI surfaces.
package web

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// hub maintains the set of active websocket clients and fans pipeline
// events out to them. Clients that cannot keep up are dropped rather than
// allowed to stall the broadcast loop.
type hub struct {
	name   string
	logger *slog.Logger

	clients map[*client]bool

	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	mu sync.RWMutex
}

func newHub(name string, logger *slog.Logger) *hub {
	return &hub{
		name:       name,
		logger:     logger,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// run is the hub's main loop. Call in a goroutine.
func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ui client connected", "hub", h.name, "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ui client disconnected", "hub", h.name, "clients", count)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Client buffer full, they are too slow.
					close(c.send)
					delete(h.clients, c)
					h.logger.Warn("dropped slow ui client", "hub", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// broadcastJSON encodes and queues v for all clients. A full broadcast
// channel drops the event; the live stream is best-effort.
func (h *hub) broadcastJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode broadcast event", "hub", h.name, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "hub", h.name)
	}
}

// clientCount returns the number of connected clients.
func (h *hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
