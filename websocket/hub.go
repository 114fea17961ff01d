// Package websocket pushes sync status snapshots to connected UI clients so
// the status indicator updates without polling.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/apex/log"

	"fieldsync/models"
)

// Hub manages WebSocket connections and broadcasting
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound status messages
	broadcast chan []byte

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	mutex sync.RWMutex

	lastStatus       models.StatusSnapshot
	connectedClients int
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.clients[client] = true
			h.connectedClients = len(h.clients)
			// Late joiners immediately see the current status.
			last := h.lastStatus
			h.mutex.Unlock()
			if data, err := statusMessage(last); err == nil {
				select {
				case client.send <- data:
				default:
				}
			}
			log.Infof("Status client connected. Total clients: %d", h.connectedClients)

		case client := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connectedClients = len(h.clients)
			}
			h.mutex.Unlock()
			log.Infof("Status client disconnected. Total clients: %d", h.connectedClients)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
		}
	}
}

// BroadcastStatus fans a sync status snapshot out to all connected clients
func (h *Hub) BroadcastStatus(snapshot models.StatusSnapshot) {
	h.mutex.Lock()
	h.lastStatus = snapshot
	h.mutex.Unlock()

	data, err := statusMessage(snapshot)
	if err != nil {
		log.Errorf("Failed to marshal status broadcast: %v", err)
		return
	}
	h.broadcast <- data
}

// GetStats returns the client count and the last broadcast status
func (h *Hub) GetStats() (int, models.StatusSnapshot) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients, h.lastStatus
}

func statusMessage(snapshot models.StatusSnapshot) ([]byte, error) {
	return json.Marshal(models.BroadcastMessage{
		Type:      "sync_status",
		Data:      snapshot,
		Timestamp: time.Now().UTC(),
	})
}
