// Package sync implements the one-way mirroring of tee-time postings and
// reservations into the device calendar. It compares backend entities
// against the mapping database, creates and updates events through the
// calendar adapter, and removes events whose entities are gone.
//
// The package contains two main components:
//
//   - [Manager] performs the per-entity operations: sync, update, remove,
//     reconcile-all, and orphan cleanup.
//   - [Engine] runs the periodic polling loop around the Manager.
//
// Calendar failures are absorbed here: they are logged and counted, never
// returned to callers. A golf app must keep working when the calendar
// does not.
package sync

import (
	"context"

	"github.com/threeputt/teesync/internal/model"
	"github.com/threeputt/teesync/internal/state"
)

// Entity is anything that can be mirrored into a calendar event: a tee-time
// posting or a reservation. Implemented by [model.TeeTimePosting] and
// [model.Reservation].
type Entity interface {
	Ref() model.Ref
	Snapshot() (model.Snapshot, error)
	DetailLine() string
}

// CalendarStore provides access to the device calendar.
// Implemented by [calendar.Adapter].
type CalendarStore interface {
	HasAccess(ctx context.Context) bool
	RequestAccess(ctx context.Context) (bool, error)
	CreateEvent(ctx context.Context, fields model.EventFields) (eventID string, err error)
	UpdateEvent(ctx context.Context, eventID string, fields model.EventFields) error
	DeleteEvent(ctx context.Context, eventID string) error
	EventExists(ctx context.Context, eventID string) (bool, error)
}

// MappingStore provides access to the entity→event mapping database.
// Implemented by [state.Store].
type MappingStore interface {
	Save(ctx context.Context, m *state.Mapping) error
	Get(ctx context.Context, ref model.Ref) (*state.Mapping, error)
	GetAll(ctx context.Context) ([]*state.Mapping, error)
	Delete(ctx context.Context, ref model.Ref) error
}

// ListingSource provides the authenticated user's current postings and
// reservations. Implemented by [threeputt.Client].
type ListingSource interface {
	Postings(ctx context.Context) ([]*model.TeeTimePosting, error)
	Reservations(ctx context.Context) ([]*model.Reservation, error)
}
