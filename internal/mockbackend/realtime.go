package mockbackend

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"clinicdesk/internal/models"
	"clinicdesk/internal/realtime"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client-to-server frame types mirrored from the push-channel contract.
const (
	frameVisitAction = "visit:action"
	frameJoinSuffix  = ":join"
	frameLeaveSuffix = ":leave"
)

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.userFromRequest(r); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("mockbackend: websocket upgrade: %v", err)
		return
	}

	client := &hubClient{
		id:    uuid.NewString(),
		send:  make(chan []byte, 32),
		rooms: make(map[string]bool),
	}
	s.hub.register(client)

	go func() {
		for payload := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}()

	defer func() {
		s.hub.unregister(client)
		_ = conn.Close()
	}()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(client, payload)
	}
}

func (s *Server) handleFrame(client *hubClient, payload []byte) {
	var env realtime.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("mockbackend: malformed client frame: %v", err)
		return
	}
	frame := string(env.Type)
	switch {
	case strings.HasSuffix(frame, frameJoinSuffix):
		s.hub.joinRoom(client, strings.TrimSuffix(frame, frameJoinSuffix))
	case strings.HasSuffix(frame, frameLeaveSuffix):
		s.hub.leaveRoom(client, strings.TrimSuffix(frame, frameLeaveSuffix))
	case frame == frameVisitAction:
		// Peer notifications are informational; state already changed via
		// REST, so just fan the action out to the other clients.
		s.hub.broadcast("", payload)
	default:
		log.Printf("mockbackend: dropping unknown client frame %q", frame)
	}
}

func envelope(kind realtime.EventKind, data interface{}) realtime.Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("mockbackend: encode %s event: %v", kind, err)
		return realtime.Envelope{}
	}
	return realtime.Envelope{Type: kind, Data: raw}
}

// push broadcasts one event to a room; an empty room addresses every client.
// Exported behavior for tests lives on Push.
func (s *Server) push(room string, env realtime.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("mockbackend: encode frame: %v", err)
		return
	}
	s.hub.broadcast(room, payload)
}

// Push injects a server event, for driving connected clients from tests.
func (s *Server) Push(room string, kind realtime.EventKind, data interface{}) {
	s.push(room, envelope(kind, data))
}

func (s *Server) pushQueueUpdate(visits []models.Visit) {
	s.push("", envelope(realtime.EventQueueUpdate, visits))
}
