// Package ws fans change events out to websocket clients and lets feeds
// subscribe to them, either in-process or over a websocket connection.
package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/sujalbistaa/confessly/internal/models"
)

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages for every client.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	done      chan struct{}
	closeOnce sync.Once

	// Protects clients for Len.
	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's processing loop. It returns after Close, closing the
// send channel of every client still registered.
func (h *Hub) Run() {
	log.Println("WebSocket hub started.")
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client %s registered. Total connections: %d", client.ID, n)

		case client := <-h.Unregister:
			h.mu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client.Send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client %s unregistered. Remaining connections: %d", client.ID, n)

		case message := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// A client that cannot keep up is dropped; it reconnects
					// and reloads instead of silently missing events.
					log.Printf("WebSocket client %s send buffer full, disconnecting", client.ID)
					delete(h.clients, client)
					close(client.Send)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			log.Println("WebSocket hub stopped.")
			return
		}
	}
}

// Close stops Run. Safe to call more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Len reports the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish encodes v as the payload of a table/type change event and
// broadcasts it. Events published after Close are discarded.
func (h *Hub) Publish(table, eventType string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s payload: %w", table, eventType, err)
	}
	return h.PublishEvent(models.ChangeEvent{Table: table, Type: eventType, Payload: payload})
}

// PublishEvent broadcasts an already encoded change event.
func (h *Hub) PublishEvent(evt models.ChangeEvent) error {
	msg, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	select {
	case h.Broadcast <- msg:
	case <-h.done:
	}
	return nil
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}
