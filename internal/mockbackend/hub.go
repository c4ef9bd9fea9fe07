package mockbackend

import (
	"log"
	"sync"
)

// hub fans realtime frames out to connected websocket clients, grouped by the
// rooms they joined ("queue", "display").
type hub struct {
	mu      sync.RWMutex
	clients map[string]*hubClient
}

type hubClient struct {
	id    string
	send  chan []byte
	rooms map[string]bool
}

func newHub() *hub {
	return &hub{clients: make(map[string]*hubClient)}
}

func (h *hub) register(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.id] = client
}

func (h *hub) unregister(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	delete(h.clients, client.id)
	close(client.send)
}

func (h *hub) joinRoom(client *hubClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.rooms[room] = true
}

func (h *hub) leaveRoom(client *hubClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(client.rooms, room)
}

// broadcast sends the payload to every client in the room; an empty room
// addresses all clients. Slow consumers drop frames rather than block.
func (h *hub) broadcast(room string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if room != "" && !client.rooms[room] {
			continue
		}
		select {
		case client.send <- payload:
		default:
			log.Printf("mockbackend: drop frame for client %s", client.id)
		}
	}
}
