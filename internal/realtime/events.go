package realtime

import "encoding/json"

// EventKind is the closed enumeration of wire events. Unknown kinds are
// rejected at the boundary instead of being routed by arbitrary string keys.
type EventKind string

const (
	EventQueueUpdate          EventKind = "queue:update"
	EventPatientCalled        EventKind = "patient:called"
	EventConsultationStarted  EventKind = "consultation:started"
	EventConsultationFinished EventKind = "consultation:finished"
	EventConnectionState      EventKind = "connection:state"
	EventError                EventKind = "error"
)

// envelopeGeneric wraps another event; the client unwraps it once and applies
// the same kind check to the inner event.
const envelopeGeneric EventKind = "realtime:event"

func knownKind(kind EventKind) bool {
	switch kind {
	case EventQueueUpdate, EventPatientCalled, EventConsultationStarted,
		EventConsultationFinished, EventConnectionState, EventError:
		return true
	}
	return false
}

// Envelope is the wire frame for both directions of the push channel.
type Envelope struct {
	Type EventKind       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client-to-server frame types.
const (
	frameVisitAction = "visit:action"
	frameJoinSuffix  = ":join"
	frameLeaveSuffix = ":leave"
)

const (
	RoomQueue   = "queue"
	RoomDisplay = "display"
)
