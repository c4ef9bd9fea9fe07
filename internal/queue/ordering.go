package queue

import (
	"sort"

	"clinicdesk/internal/models"
)

// Order returns the canonical queue ordering: urgency rank first
// (critical, priority, standard), earliest arrival within a rank. The sort is
// stable, so entries tied on both keys keep their input order. Order never
// mutates its input.
func Order(entries []models.Visit) []models.Visit {
	ordered := make([]models.Visit, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		ra, rb := models.UrgencyRank(a.Urgency), models.UrgencyRank(b.Urgency)
		if ra != rb {
			return ra < rb
		}
		return a.ArrivedAt.Before(b.ArrivedAt)
	})
	return ordered
}
