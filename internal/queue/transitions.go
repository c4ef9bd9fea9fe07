package queue

import "clinicdesk/internal/models"

const (
	ActionCall   = "call"
	ActionStart  = "start"
	ActionFinish = "finish"
	ActionSkip   = "skip"
	ActionCancel = "cancel"
)

// skip is the one deliberate cycle: called/in_consultation back to waiting.
var transitionMap = map[string][]string{
	ActionCall:   {models.StatusWaiting},
	ActionStart:  {models.StatusCalled},
	ActionFinish: {models.StatusInConsultation},
	ActionSkip:   {models.StatusCalled, models.StatusInConsultation},
	ActionCancel: {models.StatusWaiting, models.StatusCalled, models.StatusInConsultation},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
