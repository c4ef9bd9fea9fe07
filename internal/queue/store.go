package queue

import (
	"sync"
	"time"

	"clinicdesk/internal/models"
)

// Store holds the client-side view of the waiting queue. Every structural
// mutation re-derives the canonical ordering through Order; callers never
// hand-sort entries. The mutex stands in for the original single-threaded
// event loop: mutations are atomic and no lock is held across I/O.
//
// Store is constructed by the application root and injected, never a package
// singleton.
type Store struct {
	mu         sync.RWMutex
	entries    []models.Visit
	connection string
	lastUpdate time.Time
}

func NewStore() *Store {
	return &Store{connection: models.ConnDisconnected}
}

// ReplaceAll installs a full refresh from a trusted source (server fetch or
// realtime snapshot push).
func (s *Store) ReplaceAll(entries []models.Visit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = Order(entries)
	s.lastUpdate = time.Now()
}

// VisitPatch carries the fields a partial update may set. Nil fields are left
// untouched.
type VisitPatch struct {
	Status       *string
	ProviderID   *string
	CalledAt     *time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	PatientName  *string
	ProviderName *string
}

// Patch merges the set fields into the entry with the given id and re-orders.
// An absent id is a benign no-op, not an error: server pushes and local
// actions can race on removal. Returns whether an entry was updated.
func (s *Store) Patch(id string, patch VisitPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].VisitID != id {
			continue
		}
		apply(&s.entries[i], patch)
		s.entries = Order(s.entries)
		s.lastUpdate = time.Now()
		return true
	}
	return false
}

func apply(visit *models.Visit, patch VisitPatch) {
	if patch.Status != nil {
		visit.Status = *patch.Status
	}
	if patch.ProviderID != nil {
		visit.ProviderID = *patch.ProviderID
	}
	if patch.CalledAt != nil {
		at := *patch.CalledAt
		visit.CalledAt = &at
	}
	if patch.StartedAt != nil {
		at := *patch.StartedAt
		visit.StartedAt = &at
	}
	if patch.FinishedAt != nil {
		at := *patch.FinishedAt
		visit.FinishedAt = &at
	}
	if patch.PatientName != nil {
		visit.PatientName = *patch.PatientName
	}
	if patch.ProviderName != nil {
		visit.ProviderName = *patch.ProviderName
	}
}

// Remove deletes the entry with the given id. No-op if absent.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].VisitID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			s.lastUpdate = time.Now()
			return true
		}
	}
	return false
}

// Insert appends a new entry and re-orders. Inserting an id that already
// exists is a caller bug; it is rejected with ErrDuplicateVisit (use Patch).
func (s *Store) Insert(visit models.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].VisitID == visit.VisitID {
			return ErrDuplicateVisit
		}
	}
	s.entries = Order(append(s.entries, visit))
	s.lastUpdate = time.Now()
	return nil
}

// NowServing is derived on read: the single entry in consultation, if any.
// Observing more than one is a data-integrity error to surface, never to
// resolve silently.
func (s *Store) NowServing() (*models.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var serving *models.Visit
	for i := range s.entries {
		if s.entries[i].Status != models.StatusInConsultation {
			continue
		}
		if serving != nil {
			return nil, ErrIntegrity
		}
		visit := cloneVisit(s.entries[i])
		serving = &visit
	}
	return serving, nil
}

func (s *Store) Get(id string) (models.Visit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.entries {
		if s.entries[i].VisitID == id {
			return cloneVisit(s.entries[i]), true
		}
	}
	return models.Visit{}, false
}

// Entries returns a copy of the ordered queue.
func (s *Store) Entries() []models.Visit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneVisits(s.entries)
}

// Position returns the 1-based place of the id in the ordered queue, -1 if
// absent.
func (s *Store) Position(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.entries {
		if s.entries[i].VisitID == id {
			return i + 1
		}
	}
	return -1
}

func (s *Store) CountByStatus(status string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for i := range s.entries {
		if s.entries[i].Status == status {
			count++
		}
	}
	return count
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// SetConnection mirrors the realtime connection state for display.
func (s *Store) SetConnection(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connection = state
}

func (s *Store) Connection() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connection
}

// Snapshot deep-copies the current entries. It is the rollback point for
// optimistic mutations; Restore(Snapshot()) reproduces the state verbatim.
func (s *Store) Snapshot() []models.Visit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneVisits(s.entries)
}

// Restore installs a previously taken snapshot verbatim, discarding any
// optimistic transform applied since.
func (s *Store) Restore(snapshot []models.Visit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = cloneVisits(snapshot)
	s.lastUpdate = time.Now()
}

func cloneVisits(entries []models.Visit) []models.Visit {
	cloned := make([]models.Visit, len(entries))
	for i := range entries {
		cloned[i] = cloneVisit(entries[i])
	}
	return cloned
}

func cloneVisit(visit models.Visit) models.Visit {
	visit.CalledAt = cloneTime(visit.CalledAt)
	visit.StartedAt = cloneTime(visit.StartedAt)
	visit.FinishedAt = cloneTime(visit.FinishedAt)
	return visit
}

func cloneTime(at *time.Time) *time.Time {
	if at == nil {
		return nil
	}
	copied := *at
	return &copied
}
