package coordinator

import (
	"encoding/json"
	"log"

	"clinicdesk/internal/models"
	"clinicdesk/internal/queue"
	"clinicdesk/internal/realtime"
)

// EventSource is the subscription side of the realtime client.
type EventSource interface {
	Subscribe(kind realtime.EventKind, fn realtime.Handler) func()
}

// BindRealtime merges server-pushed events into the store: snapshots replace,
// per-visit events patch or remove, connection changes mirror into the store
// for display. Events apply in receipt order; last write wins, and the next
// authoritative response or revalidation settles any race with an in-flight
// optimistic mutation. Returns an unbind function.
func (c *Coordinator) BindRealtime(source EventSource) func() {
	cancels := []func(){
		source.Subscribe(realtime.EventQueueUpdate, func(data json.RawMessage) {
			var visits []models.Visit
			if err := json.Unmarshal(data, &visits); err != nil {
				log.Printf("coordinator: bad queue snapshot: %v", err)
				return
			}
			c.store.ReplaceAll(visits)
		}),
		source.Subscribe(realtime.EventPatientCalled, func(data json.RawMessage) {
			var event models.PatientCalledEvent
			if err := json.Unmarshal(data, &event); err != nil {
				log.Printf("coordinator: bad patient-called event: %v", err)
				return
			}
			status := models.StatusCalled
			c.store.Patch(event.VisitID, queue.VisitPatch{Status: &status})
		}),
		source.Subscribe(realtime.EventConsultationStarted, func(data json.RawMessage) {
			var event models.ConsultationStartedEvent
			if err := json.Unmarshal(data, &event); err != nil {
				log.Printf("coordinator: bad consultation-started event: %v", err)
				return
			}
			status := models.StatusInConsultation
			patch := queue.VisitPatch{Status: &status}
			if event.ProviderID != "" {
				patch.ProviderID = &event.ProviderID
			}
			c.store.Patch(event.VisitID, patch)
		}),
		source.Subscribe(realtime.EventConsultationFinished, func(data json.RawMessage) {
			var event models.ConsultationFinishedEvent
			if err := json.Unmarshal(data, &event); err != nil {
				log.Printf("coordinator: bad consultation-finished event: %v", err)
				return
			}
			c.store.Remove(event.VisitID)
		}),
		source.Subscribe(realtime.EventConnectionState, func(data json.RawMessage) {
			var event models.ConnectionStateEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return
			}
			c.store.SetConnection(event.State)
		}),
		source.Subscribe(realtime.EventError, func(data json.RawMessage) {
			var event models.ErrorEvent
			_ = json.Unmarshal(data, &event)
			log.Printf("coordinator: realtime channel error: %s", event.Message)
		}),
	}

	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
