// Package ws manages websocket clients: the registry, the per-connection
// read/write pumps and broadcasting of detection updates.
package ws

import (
	"sync"

	"drowsydetect/pkg/log"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a message for every connected client. Clients whose
// send buffer is full are skipped rather than blocking the pipeline.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.Send(msg)
	}
}

// CloseAll disconnects every client during shutdown. Only the connections
// are closed here; each client's Serve loop notices the dead connection and
// tears down its own send channel via unregister, so in-flight Sends never
// hit a closed channel.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		c.conn.Close()
		log.Info(log.Fields{"client_id": id}, "closed websocket connection")
	}
}
