package queue

import (
	"testing"
	"time"

	"clinicdesk/internal/models"
)

func visitAt(id, urgency string, arrived time.Time) models.Visit {
	return models.Visit{
		VisitID:   id,
		Status:    models.StatusWaiting,
		Urgency:   urgency,
		ArrivedAt: arrived,
	}
}

func ids(visits []models.Visit) []string {
	out := make([]string, len(visits))
	for i, v := range visits {
		out[i] = v.VisitID
	}
	return out
}

func TestOrderUrgencyBeforeArrival(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	input := []models.Visit{
		visitAt("a", models.UrgencyStandard, base),
		visitAt("b", models.UrgencyCritical, base.Add(time.Hour)),
	}

	got := ids(Order(input))
	want := []string{"b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestOrderArrivalWithinRank(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	input := []models.Visit{
		visitAt("late", models.UrgencyPriority, base.Add(30*time.Minute)),
		visitAt("early", models.UrgencyPriority, base),
		visitAt("critical", models.UrgencyCritical, base.Add(time.Hour)),
		visitAt("standard", models.UrgencyStandard, base.Add(-time.Hour)),
	}

	got := ids(Order(input))
	want := []string{"critical", "early", "late", "standard"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestOrderStableOnTies(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	input := []models.Visit{
		visitAt("first", models.UrgencyStandard, at),
		visitAt("second", models.UrgencyStandard, at),
		visitAt("third", models.UrgencyStandard, at),
	}

	got := ids(Order(input))
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order = %v, want %v", got, want)
		}
	}
}

func TestOrderIdempotent(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	input := []models.Visit{
		visitAt("a", models.UrgencyStandard, base),
		visitAt("b", models.UrgencyCritical, base.Add(time.Minute)),
		visitAt("c", models.UrgencyPriority, base.Add(2*time.Minute)),
	}

	once := Order(input)
	twice := Order(once)
	for i := range once {
		if once[i].VisitID != twice[i].VisitID {
			t.Fatalf("reordering changed result: %v vs %v", ids(once), ids(twice))
		}
	}
}

func TestOrderDoesNotMutateInput(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	input := []models.Visit{
		visitAt("a", models.UrgencyStandard, base),
		visitAt("b", models.UrgencyCritical, base.Add(time.Minute)),
	}

	Order(input)
	if input[0].VisitID != "a" || input[1].VisitID != "b" {
		t.Fatalf("input mutated: %v", ids(input))
	}
}
