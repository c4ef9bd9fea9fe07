package models

import "time"

type Visit struct {
	VisitID      string     `json:"id"`
	PatientID    string     `json:"patient_id"`
	ProviderID   string     `json:"provider_id,omitempty"`
	Status       string     `json:"status"`
	Urgency      string     `json:"urgency"`
	ArrivedAt    time.Time  `json:"arrived_at"`
	CalledAt     *time.Time `json:"called_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	PatientName  string     `json:"patient_name,omitempty"`
	ProviderName string     `json:"provider_name,omitempty"`
}

const (
	StatusWaiting        = "waiting"
	StatusCalled         = "called"
	StatusInConsultation = "in_consultation"
	StatusFinished       = "finished"
	StatusCancelled      = "cancelled"
)

const (
	UrgencyStandard = "standard"
	UrgencyPriority = "priority"
	UrgencyCritical = "critical"
)

// UrgencyRank maps an urgency tier to its sort rank. Lower sorts first.
// Unknown tiers rank with standard.
func UrgencyRank(urgency string) int {
	switch urgency {
	case UrgencyCritical:
		return 0
	case UrgencyPriority:
		return 1
	default:
		return 2
	}
}

// ActiveStatus reports whether a visit still occupies the queue.
func ActiveStatus(status string) bool {
	switch status {
	case StatusWaiting, StatusCalled, StatusInConsultation:
		return true
	}
	return false
}

type CreateVisitRequest struct {
	PatientID string `json:"patient_id"`
	Urgency   string `json:"urgency"`
	Notes     string `json:"notes,omitempty"`
}

type FinishVisitRequest struct {
	Notes string `json:"notes,omitempty"`
}
