package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/threeputt/teesync/internal/model"
	"github.com/threeputt/teesync/internal/state"
)

// DefaultEventDuration is the event length used when no duration is
// configured: a four-hour block for an eighteen-hole round.
const DefaultEventDuration = 4 * time.Hour

// Outcome reports what a Sync call did.
type Outcome int

const (
	// OutcomeFailed means no usable calendar event exists for the entity:
	// access was denied, the entity is not syncable, or the event could
	// not be saved.
	OutcomeFailed Outcome = iota

	// OutcomeCreated means a new event was written to the calendar.
	OutcomeCreated

	// OutcomeUpToDate means an event already existed; it was refreshed in
	// place if the entity had changed.
	OutcomeUpToDate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpToDate:
		return "up-to-date"
	default:
		return "failed"
	}
}

// Stats tracks the number of mutations performed in a single pass over
// multiple entities.
type Stats struct {
	Updated int
	Skipped int
	Removed int
	Errors  int
}

// Manager performs calendar mirroring for individual entities. It is
// stateless between calls; all persistent state lives in the
// [MappingStore].
type Manager struct {
	cal      CalendarStore
	store    MappingStore
	duration time.Duration
	log      *slog.Logger

	syncing atomic.Bool
}

// NewManager creates a Manager wired to the given calendar adapter and
// mapping store. eventDuration is the length of created events; zero or
// negative means [DefaultEventDuration].
func NewManager(cal CalendarStore, store MappingStore, eventDuration time.Duration, logger *slog.Logger) *Manager {
	if eventDuration <= 0 {
		eventDuration = DefaultEventDuration
	}
	return &Manager{cal: cal, store: store, duration: eventDuration, log: logger}
}

// Syncing reports whether a batch pass (SyncAll or CleanupDeleted) is
// currently running. The engine uses it to skip overlapping ticks.
func (m *Manager) Syncing() bool {
	return m.syncing.Load()
}

// Sync ensures a calendar event exists for the entity and reflects its
// current state. promptForAccess controls whether the OS permission dialog
// may be shown when access has not been granted yet; background callers
// pass false.
//
// Calendar and store failures are logged, never returned; the outcome
// tells the caller whether an event exists, nothing more.
func (m *Manager) Sync(ctx context.Context, e Entity, promptForAccess bool) Outcome {
	ref := e.Ref()

	if !m.ensureAccess(ctx, promptForAccess) {
		m.log.Warn("skipping sync, no calendar access", "ref", ref)
		return OutcomeFailed
	}

	snap, err := e.Snapshot()
	if err != nil {
		if errors.Is(err, model.ErrNotSyncable) {
			m.log.Warn("entity not syncable", "ref", ref, "error", err)
		} else {
			m.log.Error("building snapshot", "ref", ref, "error", err)
		}
		return OutcomeFailed
	}

	mapping, err := m.store.Get(ctx, ref)
	if err != nil {
		m.log.Error("loading mapping", "ref", ref, "error", err)
		return OutcomeFailed
	}

	if mapping != nil {
		// Already synced once; refresh in place if the entity changed.
		m.UpdateIfNeeded(ctx, e)
		return OutcomeUpToDate
	}

	fields := buildEventFields(e, snap, m.duration)
	eventID, err := m.cal.CreateEvent(ctx, fields)
	if err != nil {
		m.log.Error("creating calendar event", "ref", ref, "error", err)
		return OutcomeFailed
	}
	m.log.Info("calendar event created", "ref", ref, "event_id", eventID)

	mapping = &state.Mapping{
		Ref:       ref,
		EventID:   eventID,
		Snapshot:  snap,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Save(ctx, mapping); err != nil {
		// The event exists even though recording it failed; the outcome
		// stays Created because the calendar is correct.
		m.log.Error("saving mapping", "ref", ref, "event_id", eventID, "error", err)
	}
	return OutcomeCreated
}

// UpdateIfNeeded refreshes the entity's calendar event when the stored
// snapshot differs from the entity's current state. It reports whether an
// update was written. Entities that were never synced are left alone: this
// never creates events.
func (m *Manager) UpdateIfNeeded(ctx context.Context, e Entity) bool {
	updated, err := m.updateIfNeeded(ctx, e)
	if err != nil {
		m.log.Error("updating calendar event", "ref", e.Ref(), "error", err)
	}
	return updated
}

func (m *Manager) updateIfNeeded(ctx context.Context, e Entity) (bool, error) {
	ref := e.Ref()

	mapping, err := m.store.Get(ctx, ref)
	if err != nil {
		return false, err
	}
	if mapping == nil {
		return false, nil
	}

	snap, err := e.Snapshot()
	if err != nil {
		// The entity degraded (e.g. a reservation whose posting summary
		// disappeared). Keep the stale event rather than guessing.
		m.log.Warn("entity no longer syncable, keeping stale event", "ref", ref, "error", err)
		return false, nil
	}

	if mapping.Snapshot.Equal(snap) {
		return false, nil
	}

	fields := buildEventFields(e, snap, m.duration)
	if err := m.cal.UpdateEvent(ctx, mapping.EventID, fields); err != nil {
		// Mapping keeps the old snapshot, so the next pass retries.
		return false, err
	}
	m.log.Info("calendar event updated", "ref", ref, "event_id", mapping.EventID)

	mapping.Snapshot = snap
	if err := m.store.Save(ctx, mapping); err != nil {
		return true, err
	}
	return true, nil
}

// Remove deletes the entity's calendar event and forgets the mapping. The
// mapping is removed even when the event delete fails: the entity is gone,
// and a stale mapping would block future postings from reusing the ref.
func (m *Manager) Remove(ctx context.Context, ref model.Ref) {
	mapping, err := m.store.Get(ctx, ref)
	if err != nil {
		m.log.Error("loading mapping", "ref", ref, "error", err)
		return
	}
	if mapping == nil {
		return
	}

	if err := m.cal.DeleteEvent(ctx, mapping.EventID); err != nil {
		m.log.Error("deleting calendar event", "ref", ref, "event_id", mapping.EventID, "error", err)
	} else {
		m.log.Info("calendar event removed", "ref", ref, "event_id", mapping.EventID)
	}

	if err := m.store.Delete(ctx, ref); err != nil {
		m.log.Error("deleting mapping", "ref", ref, "error", err)
	}
}

// SyncAll refreshes the events of all already-synced entities in the given
// set. It never creates events and never prompts for access: a background
// reconcile pass must not surprise the user with an OS dialog or with
// events they did not ask for.
func (m *Manager) SyncAll(ctx context.Context, entities []Entity) Stats {
	var stats Stats

	if !m.cal.HasAccess(ctx) {
		m.log.Debug("skipping reconcile pass, no calendar access")
		return stats
	}

	m.syncing.Store(true)
	defer m.syncing.Store(false)

	for _, e := range entities {
		if ctx.Err() != nil {
			return stats
		}
		updated, err := m.updateIfNeeded(ctx, e)
		switch {
		case err != nil:
			m.log.Error("updating calendar event", "ref", e.Ref(), "error", err)
			stats.Errors++
		case updated:
			stats.Updated++
		default:
			stats.Skipped++
		}
	}
	return stats
}

// CleanupDeleted removes events whose entities no longer exist on the
// backend: mappings not present in the given postings and reservations are
// orphans, and their events are deleted.
func (m *Manager) CleanupDeleted(ctx context.Context, postings []*model.TeeTimePosting, reservations []*model.Reservation) Stats {
	var stats Stats

	mappings, err := m.store.GetAll(ctx)
	if err != nil {
		m.log.Error("listing mappings", "error", err)
		stats.Errors++
		return stats
	}

	m.syncing.Store(true)
	defer m.syncing.Store(false)

	current := make(map[model.Ref]struct{}, len(postings)+len(reservations))
	for _, p := range postings {
		current[p.Ref()] = struct{}{}
	}
	for _, r := range reservations {
		current[r.Ref()] = struct{}{}
	}

	for _, mapping := range mappings {
		if ctx.Err() != nil {
			return stats
		}
		if _, ok := current[mapping.Ref]; ok {
			continue
		}
		m.log.Info("entity gone from backend, removing event", "ref", mapping.Ref)
		m.Remove(ctx, mapping.Ref)
		stats.Removed++
	}
	return stats
}

// ensureAccess reports whether calendar access is available, optionally
// prompting the user via the OS dialog.
func (m *Manager) ensureAccess(ctx context.Context, prompt bool) bool {
	if m.cal.HasAccess(ctx) {
		return true
	}
	if !prompt {
		return false
	}
	granted, err := m.cal.RequestAccess(ctx)
	if err != nil {
		m.log.Error("requesting calendar access", "error", err)
		return false
	}
	return granted
}
