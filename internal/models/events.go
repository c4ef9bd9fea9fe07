package models

import (
	"encoding/json"
	"time"
)

// Connection states mirrored into the queue store for display.
const (
	ConnConnected    = "connected"
	ConnConnecting   = "connecting"
	ConnDisconnected = "disconnected"
)

type PatientCalledEvent struct {
	VisitID     string `json:"visit_id"`
	PatientName string `json:"patient_name,omitempty"`
}

type ConsultationStartedEvent struct {
	VisitID    string `json:"visit_id"`
	ProviderID string `json:"provider_id,omitempty"`
}

type ConsultationFinishedEvent struct {
	VisitID     string `json:"visit_id"`
	DurationMin int    `json:"duration_min,omitempty"`
}

type ConnectionStateEvent struct {
	State string `json:"state"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// VisitActionEvent is published client to server after a queue action so other
// connected clients converge.
type VisitActionEvent struct {
	Action    string          `json:"action"`
	VisitID   string          `json:"visit_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type RoomEvent struct {
	Room string `json:"room"`
}
