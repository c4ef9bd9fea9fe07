package coordinator

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log"
	"sync"
	"time"

	"clinicdesk/internal/models"
	"clinicdesk/internal/queue"

	"go.uber.org/atomic"
)

var (
	actionsTotal         = expvar.NewInt("coordinator_actions_total")
	rollbacksTotal       = expvar.NewInt("coordinator_rollbacks_total")
	staleFetchesDropped  = expvar.NewInt("coordinator_stale_fetches_dropped_total")
	revalidationsStarted = expvar.NewInt("coordinator_revalidations_total")
)

// ErrVisitBusy rejects a second action on a visit that already has one in
// flight. Callers retry once the first action settles.
var ErrVisitBusy = errors.New("visit action already in flight")

// Backend is the slice of the REST contract the coordinator drives.
// api.Client satisfies it.
type Backend interface {
	GetQueue(ctx context.Context) ([]models.Visit, error)
	CreateVisit(ctx context.Context, req models.CreateVisitRequest) (models.Visit, error)
	CallPatient(ctx context.Context, visitID string) (models.Visit, error)
	StartConsultation(ctx context.Context, visitID string) (models.Visit, error)
	FinishConsultation(ctx context.Context, visitID, notes string) (models.Visit, error)
	SkipPatient(ctx context.Context, visitID string) (models.Visit, error)
	CancelVisit(ctx context.Context, visitID string) error
}

// Notifier publishes a completed action on the realtime channel.
// realtime.Client satisfies it.
type Notifier interface {
	PublishVisitAction(action, visitID string, data interface{}) error
}

type Options struct {
	// RevalidateDebounce delays the post-action full refresh so bursts of
	// actions collapse into one fetch. Defaults to 250ms.
	RevalidateDebounce time.Duration
}

// Coordinator applies each queue action optimistically to the local store
// ahead of server confirmation, then reconciles: the authoritative response
// overrides the optimistic guess on success, the pre-action snapshot is
// restored verbatim on failure. Either way a revalidation fetch is scheduled,
// since after a failed request the server state is unknown.
type Coordinator struct {
	store    *queue.Store
	backend  Backend
	notifier Notifier
	debounce time.Duration

	// generation orders revalidation fetches; a response from a superseded
	// generation is discarded rather than overwriting newer state.
	generation atomic.Int64

	mu      sync.Mutex
	leases  map[string]struct{}
	pending *time.Timer
}

func New(store *queue.Store, backend Backend, notifier Notifier, opts Options) *Coordinator {
	debounce := opts.RevalidateDebounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Coordinator{
		store:    store,
		backend:  backend,
		notifier: notifier,
		debounce: debounce,
		leases:   make(map[string]struct{}),
	}
}

func (c *Coordinator) acquire(visitID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.leases[visitID]; held {
		return ErrVisitBusy
	}
	c.leases[visitID] = struct{}{}
	return nil
}

func (c *Coordinator) release(visitID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.leases, visitID)
}

// CreateVisit adds a patient to the queue. The entry only exists after the
// server assigns it an id, so there is no optimistic phase; the result is
// inserted locally and a revalidation is scheduled.
func (c *Coordinator) CreateVisit(ctx context.Context, req models.CreateVisitRequest) (models.Visit, error) {
	actionsTotal.Add(1)
	visit, err := c.backend.CreateVisit(ctx, req)
	if err != nil {
		c.scheduleRevalidate()
		return models.Visit{}, err
	}
	if err := c.store.Insert(visit); err != nil {
		// Already present via a realtime push; converge on the server copy.
		c.store.Patch(visit.VisitID, patchFrom(visit))
	}
	c.notify("created", visit.VisitID, visit)
	c.scheduleRevalidate()
	return visit, nil
}

// CallPatient marks a waiting visit as called.
func (c *Coordinator) CallPatient(ctx context.Context, visitID string) (models.Visit, error) {
	now := time.Now().UTC()
	status := models.StatusCalled
	return c.runAction(ctx, queue.ActionCall, "called", visitID,
		queue.VisitPatch{Status: &status, CalledAt: &now},
		func() (models.Visit, error) { return c.backend.CallPatient(ctx, visitID) })
}

// StartConsultation moves a called visit into consultation; now-serving
// follows by derivation.
func (c *Coordinator) StartConsultation(ctx context.Context, visitID string) (models.Visit, error) {
	now := time.Now().UTC()
	status := models.StatusInConsultation
	return c.runAction(ctx, queue.ActionStart, "consultation_started", visitID,
		queue.VisitPatch{Status: &status, StartedAt: &now},
		func() (models.Visit, error) { return c.backend.StartConsultation(ctx, visitID) })
}

// SkipPatient returns a called or in-consultation visit to the waiting pool.
func (c *Coordinator) SkipPatient(ctx context.Context, visitID string) (models.Visit, error) {
	status := models.StatusWaiting
	return c.runAction(ctx, queue.ActionSkip, "skipped", visitID,
		queue.VisitPatch{Status: &status},
		func() (models.Visit, error) { return c.backend.SkipPatient(ctx, visitID) })
}

// runAction is the shared optimistic-update protocol for patch-shaped
// actions: snapshot, transform, request, commit or rollback.
func (c *Coordinator) runAction(ctx context.Context, action, notifyAction, visitID string, optimistic queue.VisitPatch, request func() (models.Visit, error)) (models.Visit, error) {
	if err := c.acquire(visitID); err != nil {
		return models.Visit{}, err
	}
	defer c.release(visitID)
	actionsTotal.Add(1)

	current, ok := c.store.Get(visitID)
	if !ok {
		return models.Visit{}, queue.ErrVisitNotFound
	}
	if !queue.ValidTransition(action, current.Status) {
		return models.Visit{}, fmt.Errorf("%w: %s from %s", queue.ErrInvalidState, action, current.Status)
	}

	snapshot := c.store.Snapshot()
	c.store.Patch(visitID, optimistic)

	visit, err := request()
	if err != nil {
		rollbacksTotal.Add(1)
		c.store.Restore(snapshot)
		c.scheduleRevalidate()
		return models.Visit{}, fmt.Errorf("%s %s: %w", action, visitID, err)
	}

	// Server is always right on conflict: its fields override the guess.
	c.store.Patch(visitID, patchFrom(visit))
	c.notify(notifyAction, visitID, visit)
	c.scheduleRevalidate()
	return visit, nil
}

// FinishConsultation completes a visit: the entry leaves the queue and
// now-serving clears by derivation.
func (c *Coordinator) FinishConsultation(ctx context.Context, visitID, notes string) (models.Visit, error) {
	if err := c.acquire(visitID); err != nil {
		return models.Visit{}, err
	}
	defer c.release(visitID)
	actionsTotal.Add(1)

	current, ok := c.store.Get(visitID)
	if !ok {
		return models.Visit{}, queue.ErrVisitNotFound
	}
	if !queue.ValidTransition(queue.ActionFinish, current.Status) {
		return models.Visit{}, fmt.Errorf("%w: finish from %s", queue.ErrInvalidState, current.Status)
	}

	snapshot := c.store.Snapshot()
	c.store.Remove(visitID)

	visit, err := c.backend.FinishConsultation(ctx, visitID, notes)
	if err != nil {
		rollbacksTotal.Add(1)
		c.store.Restore(snapshot)
		c.scheduleRevalidate()
		return models.Visit{}, fmt.Errorf("finish %s: %w", visitID, err)
	}

	c.notify("consultation_finished", visitID, visit)
	c.scheduleRevalidate()
	return visit, nil
}

// CancelVisit removes a visit from the queue entirely.
func (c *Coordinator) CancelVisit(ctx context.Context, visitID string) error {
	if err := c.acquire(visitID); err != nil {
		return err
	}
	defer c.release(visitID)
	actionsTotal.Add(1)

	current, ok := c.store.Get(visitID)
	if !ok {
		return queue.ErrVisitNotFound
	}
	if !queue.ValidTransition(queue.ActionCancel, current.Status) {
		return fmt.Errorf("%w: cancel from %s", queue.ErrInvalidState, current.Status)
	}

	snapshot := c.store.Snapshot()
	c.store.Remove(visitID)

	if err := c.backend.CancelVisit(ctx, visitID); err != nil {
		rollbacksTotal.Add(1)
		c.store.Restore(snapshot)
		c.scheduleRevalidate()
		return fmt.Errorf("cancel %s: %w", visitID, err)
	}

	c.notify("cancelled", visitID, nil)
	c.scheduleRevalidate()
	return nil
}

func (c *Coordinator) notify(action, visitID string, data interface{}) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.PublishVisitAction(action, visitID, data); err != nil {
		// Degraded channel only; the scheduled revalidation still converges
		// every client through polling.
		log.Printf("coordinator: notify %s %s: %v", action, visitID, err)
	}
}

// Revalidate fetches the authoritative queue and installs it, unless a newer
// revalidation superseded this one while the fetch was in flight.
func (c *Coordinator) Revalidate(ctx context.Context) error {
	revalidationsStarted.Add(1)
	gen := c.generation.Inc()

	visits, err := c.backend.GetQueue(ctx)
	if err != nil {
		return fmt.Errorf("revalidate: %w", err)
	}
	if c.generation.Load() != gen {
		staleFetchesDropped.Add(1)
		return nil
	}
	c.store.ReplaceAll(visits)
	return nil
}

func (c *Coordinator) scheduleRevalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pending = time.AfterFunc(c.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Revalidate(ctx); err != nil {
			log.Printf("coordinator: %v", err)
		}
	})
}

func patchFrom(visit models.Visit) queue.VisitPatch {
	patch := queue.VisitPatch{Status: &visit.Status}
	if visit.ProviderID != "" {
		patch.ProviderID = &visit.ProviderID
	}
	if visit.CalledAt != nil {
		patch.CalledAt = visit.CalledAt
	}
	if visit.StartedAt != nil {
		patch.StartedAt = visit.StartedAt
	}
	if visit.FinishedAt != nil {
		patch.FinishedAt = visit.FinishedAt
	}
	if visit.PatientName != "" {
		patch.PatientName = &visit.PatientName
	}
	if visit.ProviderName != "" {
		patch.ProviderName = &visit.ProviderName
	}
	return patch
}
