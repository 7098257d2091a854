// Package calendar wraps the go-eventkit calendar library and exposes the
// event operations the sync manager needs: permission query/request and
// create/update/delete/exists keyed by the opaque EventKit event identifier.
//
// EventKit raises the macOS TCC permission prompt when the underlying client
// is first initialised, so the client is constructed lazily inside
// [Adapter.RequestAccess]. Every method accepts context.Context for API
// consistency with the architectural invariants, even though the underlying
// cgo calls are non-cancellable (sub-200ms latency).
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ekcalendar "github.com/BRO3886/go-eventkit/calendar"

	"github.com/threeputt/teesync/internal/model"
)

var (
	// ErrPermissionDenied is returned by event operations when calendar
	// access has not been granted.
	ErrPermissionDenied = errors.New("calendar access not granted")

	// ErrNotFound is returned by UpdateEvent when the target event no
	// longer exists (e.g. the user deleted it by hand).
	ErrNotFound = errors.New("calendar event not found")

	// ErrStoreUnavailable is returned when no usable calendar exists on
	// the device, or the configured calendar name matches none.
	ErrStoreUnavailable = errors.New("no usable calendar available")
)

// EventKitClient is the subset of [ekcalendar.Client] methods used by the
// adapter. Defining it as an interface allows mock injection in tests.
type EventKitClient interface {
	Calendars() ([]ekcalendar.Calendar, error)
	Event(id string) (*ekcalendar.Event, error)
	CreateEvent(input ekcalendar.CreateEventInput) (*ekcalendar.Event, error)
	UpdateEvent(id string, input ekcalendar.UpdateEventInput, span ekcalendar.Span) (*ekcalendar.Event, error)
	DeleteEvent(id string, span ekcalendar.Span) error
}

// Adapter provides sync-manager–oriented operations on the device calendar
// via EventKit. Create one with [NewAdapter] or [NewAdapterWithClient].
//
// Access state is session-scoped: once a grant has been observed in this
// process it is trusted for the rest of the process lifetime, which also
// papers over EventKit's unreliable status reporting immediately after a
// grant.
type Adapter struct {
	mu        sync.Mutex
	client    EventKitClient
	newClient func() (EventKitClient, error)
	granted   bool
	denied    bool

	calendarName string
	log          *slog.Logger
}

// NewAdapter creates an Adapter backed by a real EventKit client. The client
// is initialised lazily on the first [Adapter.RequestAccess], which triggers
// the macOS TCC permissions prompt. calendarName selects the target
// calendar; empty means the device's default calendar.
func NewAdapter(calendarName string, logger *slog.Logger) *Adapter {
	return &Adapter{
		newClient: func() (EventKitClient, error) {
			c, err := ekcalendar.New()
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		calendarName: calendarName,
		log:          logger,
	}
}

// NewAdapterWithClient creates an Adapter with a caller-supplied client and
// access already granted. Intended for testing with a mock [EventKitClient].
func NewAdapterWithClient(client EventKitClient, calendarName string, logger *slog.Logger) *Adapter {
	return &Adapter{client: client, granted: true, calendarName: calendarName, log: logger}
}

// HasAccess reports whether calendar access has been granted during this
// process lifetime. It never prompts.
func (a *Adapter) HasAccess(_ context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.granted
}

// RequestAccess initialises the EventKit client, which triggers the OS
// permission prompt if the user has not yet decided. A previous denial is
// reported as not granted without error. The OS does not re-prompt; the
// user must flip the switch in System Settings.
func (a *Adapter) RequestAccess(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("request calendar access: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.granted {
		return true, nil
	}
	if a.denied {
		return false, nil
	}

	c, err := a.newClient()
	if err != nil {
		if isAccessDenied(err) {
			a.log.Warn("calendar access denied by user")
			a.denied = true
			return false, nil
		}
		return false, fmt.Errorf("initialising calendar client: %w", err)
	}

	a.client = c
	a.granted = true
	a.log.Debug("calendar access granted")
	return true, nil
}

// accessClient returns the initialised client or ErrPermissionDenied.
func (a *Adapter) accessClient() (EventKitClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.granted || a.client == nil {
		return nil, ErrPermissionDenied
	}
	return a.client, nil
}

// CreateEvent writes a new calendar event and returns the durable EventKit
// identifier used for later updates and deletes.
func (a *Adapter) CreateEvent(ctx context.Context, f model.EventFields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	client, err := a.accessClient()
	if err != nil {
		return "", err
	}

	calName, err := a.resolveCalendar(client)
	if err != nil {
		return "", err
	}

	a.log.Debug("creating calendar event", "title", f.Title, "start", f.Start)
	ev, err := client.CreateEvent(createInput(f, calName))
	if err != nil {
		return "", fmt.Errorf("saving event %q: %w", f.Title, err)
	}
	return ev.ID, nil
}

// UpdateEvent overwrites all display fields of an existing event.
func (a *Adapter) UpdateEvent(ctx context.Context, eventID string, f model.EventFields) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	client, err := a.accessClient()
	if err != nil {
		return err
	}

	if ev, getErr := client.Event(eventID); getErr != nil || ev == nil {
		return fmt.Errorf("event %q: %w", eventID, ErrNotFound)
	}

	a.log.Debug("updating calendar event", "event_id", eventID, "title", f.Title)
	if _, err := client.UpdateEvent(eventID, updateInput(f), ekcalendar.SpanThisEvent); err != nil {
		return fmt.Errorf("saving event %q: %w", eventID, err)
	}
	return nil
}

// DeleteEvent removes an event. Deleting an event that no longer exists is
// a silent success: the calendar store owns the event's lifecycle and the
// user may have removed it by hand already.
func (a *Adapter) DeleteEvent(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	client, err := a.accessClient()
	if err != nil {
		return err
	}

	if ev, getErr := client.Event(eventID); getErr != nil || ev == nil {
		a.log.Debug("calendar event already gone", "event_id", eventID)
		return nil
	}

	a.log.Debug("deleting calendar event", "event_id", eventID)
	if err := client.DeleteEvent(eventID, ekcalendar.SpanThisEvent); err != nil {
		return fmt.Errorf("deleting event %q: %w", eventID, err)
	}
	return nil
}

// EventExists reports whether an event with the given id is still present.
func (a *Adapter) EventExists(ctx context.Context, eventID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("check event: %w", err)
	}
	client, err := a.accessClient()
	if err != nil {
		return false, err
	}

	ev, err := client.Event(eventID)
	return err == nil && ev != nil, nil
}

// resolveCalendar returns the calendar name to create events in, or
// ErrStoreUnavailable when the device has no usable calendar (or the
// configured one is missing). An empty return means the default calendar.
func (a *Adapter) resolveCalendar(client EventKitClient) (string, error) {
	cals, err := client.Calendars()
	if err != nil {
		return "", fmt.Errorf("listing calendars: %w: %v", ErrStoreUnavailable, err)
	}
	if len(cals) == 0 {
		return "", ErrStoreUnavailable
	}
	if a.calendarName == "" {
		return "", nil
	}
	for _, c := range cals {
		if c.Title == a.calendarName {
			return a.calendarName, nil
		}
	}
	return "", fmt.Errorf("calendar %q: %w", a.calendarName, ErrStoreUnavailable)
}

// isAccessDenied matches the error go-eventkit returns when macOS TCC has
// denied access.
func isAccessDenied(err error) bool {
	return err != nil && strings.Contains(err.Error(), "access denied")
}
