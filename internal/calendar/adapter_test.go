package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	ekcalendar "github.com/BRO3886/go-eventkit/calendar"

	"github.com/threeputt/teesync/internal/model"
)

// ---------------------------------------------------------------------------
// Mock EventKit client
// ---------------------------------------------------------------------------

type mockClient struct {
	calendars []ekcalendar.Calendar
	events    map[string]*ekcalendar.Event
	nextID    int

	createCalls int
	updateCalls int
	deleteCalls int
	lastSpan    ekcalendar.Span

	failCreate error
	failUpdate error
	failDelete error
	failList   error
}

func newMockClient(calendarTitles ...string) *mockClient {
	m := &mockClient{events: map[string]*ekcalendar.Event{}}
	for _, t := range calendarTitles {
		m.calendars = append(m.calendars, ekcalendar.Calendar{Title: t})
	}
	return m
}

func (m *mockClient) Calendars() ([]ekcalendar.Calendar, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	return m.calendars, nil
}

func (m *mockClient) Event(id string) (*ekcalendar.Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, errors.New("event not found")
	}
	return ev, nil
}

func (m *mockClient) CreateEvent(input ekcalendar.CreateEventInput) (*ekcalendar.Event, error) {
	m.createCalls++
	if m.failCreate != nil {
		return nil, m.failCreate
	}
	m.nextID++
	ev := &ekcalendar.Event{
		ID:        fmt.Sprintf("evt-%d", m.nextID),
		Title:     input.Title,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		Location:  input.Location,
		Notes:     input.Notes,
	}
	m.events[ev.ID] = ev
	return ev, nil
}

func (m *mockClient) UpdateEvent(id string, input ekcalendar.UpdateEventInput, span ekcalendar.Span) (*ekcalendar.Event, error) {
	m.updateCalls++
	m.lastSpan = span
	if m.failUpdate != nil {
		return nil, m.failUpdate
	}
	ev, ok := m.events[id]
	if !ok {
		return nil, errors.New("event not found")
	}
	if input.Title != nil {
		ev.Title = *input.Title
	}
	if input.StartDate != nil {
		ev.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		ev.EndDate = *input.EndDate
	}
	if input.Location != nil {
		ev.Location = *input.Location
	}
	if input.Notes != nil {
		ev.Notes = *input.Notes
	}
	return ev, nil
}

func (m *mockClient) DeleteEvent(id string, span ekcalendar.Span) error {
	m.deleteCalls++
	m.lastSpan = span
	if m.failDelete != nil {
		return m.failDelete
	}
	if _, ok := m.events[id]; !ok {
		return errors.New("event not found")
	}
	delete(m.events, id)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleFields() model.EventFields {
	start := time.Date(2026, 9, 12, 8, 30, 0, 0, time.UTC)
	return model.EventFields{
		Title:    "Golf at Pine Valley",
		Start:    start,
		End:      start.Add(4 * time.Hour),
		Location: "Pine Valley GC",
		Notes:    "Available Spots: 3\nVia Three Putt Golf App",
	}
}

// ---------------------------------------------------------------------------
// Access tests
// ---------------------------------------------------------------------------

func TestRequestAccess_Granted(t *testing.T) {
	mock := newMockClient("Home")
	a := &Adapter{
		newClient: func() (EventKitClient, error) { return mock, nil },
		log:       testLogger(),
	}
	ctx := context.Background()

	if a.HasAccess(ctx) {
		t.Fatal("expected no access before RequestAccess")
	}

	granted, err := a.RequestAccess(ctx)
	if err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}
	if !granted {
		t.Fatal("expected access granted")
	}
	if !a.HasAccess(ctx) {
		t.Fatal("expected HasAccess true after grant")
	}
}

func TestRequestAccess_Denied(t *testing.T) {
	calls := 0
	a := &Adapter{
		newClient: func() (EventKitClient, error) {
			calls++
			return nil, errors.New("eventkit: access denied")
		},
		log: testLogger(),
	}
	ctx := context.Background()

	granted, err := a.RequestAccess(ctx)
	if err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}
	if granted {
		t.Fatal("expected access denied")
	}
	if a.HasAccess(ctx) {
		t.Fatal("HasAccess must stay false after denial")
	}

	// A second request must not re-prompt; the OS would not show the
	// dialog again anyway.
	if _, err := a.RequestAccess(ctx); err != nil {
		t.Fatalf("second RequestAccess: %v", err)
	}
	if calls != 1 {
		t.Fatalf("newClient called %d times, want 1", calls)
	}
}

func TestRequestAccess_InitError(t *testing.T) {
	a := &Adapter{
		newClient: func() (EventKitClient, error) {
			return nil, errors.New("store unavailable")
		},
		log: testLogger(),
	}

	if _, err := a.RequestAccess(context.Background()); err == nil {
		t.Fatal("expected error for non-permission init failure")
	}
}

func TestOperations_WithoutAccess(t *testing.T) {
	a := &Adapter{log: testLogger()}
	ctx := context.Background()

	if _, err := a.CreateEvent(ctx, sampleFields()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("CreateEvent error = %v, want ErrPermissionDenied", err)
	}
	if err := a.UpdateEvent(ctx, "evt-1", sampleFields()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("UpdateEvent error = %v, want ErrPermissionDenied", err)
	}
	if err := a.DeleteEvent(ctx, "evt-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("DeleteEvent error = %v, want ErrPermissionDenied", err)
	}
	if _, err := a.EventExists(ctx, "evt-1"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("EventExists error = %v, want ErrPermissionDenied", err)
	}
}

// ---------------------------------------------------------------------------
// Event operation tests
// ---------------------------------------------------------------------------

func TestCreateEvent(t *testing.T) {
	mock := newMockClient("Home")
	a := NewAdapterWithClient(mock, "", testLogger())

	id, err := a.CreateEvent(context.Background(), sampleFields())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty event id")
	}

	ev := mock.events[id]
	if ev == nil {
		t.Fatalf("event %q not stored in mock", id)
	}
	if ev.Title != "Golf at Pine Valley" {
		t.Errorf("title = %q", ev.Title)
	}
	if ev.Location != "Pine Valley GC" {
		t.Errorf("location = %q", ev.Location)
	}
}

func TestCreateEvent_NamedCalendar(t *testing.T) {
	mock := newMockClient("Home", "Golf")
	a := NewAdapterWithClient(mock, "Golf", testLogger())

	if _, err := a.CreateEvent(context.Background(), sampleFields()); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
}

func TestCreateEvent_MissingNamedCalendar(t *testing.T) {
	mock := newMockClient("Home")
	a := NewAdapterWithClient(mock, "Golf", testLogger())

	_, err := a.CreateEvent(context.Background(), sampleFields())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
	if mock.createCalls != 0 {
		t.Fatal("CreateEvent must not reach the client when the calendar is missing")
	}
}

func TestCreateEvent_NoCalendars(t *testing.T) {
	mock := newMockClient()
	a := NewAdapterWithClient(mock, "", testLogger())

	if _, err := a.CreateEvent(context.Background(), sampleFields()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestUpdateEvent(t *testing.T) {
	mock := newMockClient("Home")
	a := NewAdapterWithClient(mock, "", testLogger())
	ctx := context.Background()

	id, err := a.CreateEvent(ctx, sampleFields())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	f := sampleFields()
	f.Title = "Golf at Augusta"
	if err := a.UpdateEvent(ctx, id, f); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if got := mock.events[id].Title; got != "Golf at Augusta" {
		t.Errorf("title after update = %q", got)
	}
	if mock.lastSpan != ekcalendar.SpanThisEvent {
		t.Errorf("update span = %v, want SpanThisEvent", mock.lastSpan)
	}
}

func TestUpdateEvent_Missing(t *testing.T) {
	mock := newMockClient("Home")
	a := NewAdapterWithClient(mock, "", testLogger())

	err := a.UpdateEvent(context.Background(), "evt-gone", sampleFields())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if mock.updateCalls != 0 {
		t.Fatal("update must not be attempted for a missing event")
	}
}

func TestDeleteEvent(t *testing.T) {
	mock := newMockClient("Home")
	a := NewAdapterWithClient(mock, "", testLogger())
	ctx := context.Background()

	id, err := a.CreateEvent(ctx, sampleFields())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	if err := a.DeleteEvent(ctx, id); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if _, ok := mock.events[id]; ok {
		t.Fatal("event still present after delete")
	}
	if mock.lastSpan != ekcalendar.SpanThisEvent {
		t.Errorf("delete span = %v, want SpanThisEvent", mock.lastSpan)
	}
}

func TestDeleteEvent_AlreadyGone(t *testing.T) {
	mock := newMockClient("Home")
	a := NewAdapterWithClient(mock, "", testLogger())

	if err := a.DeleteEvent(context.Background(), "evt-gone"); err != nil {
		t.Fatalf("deleting a missing event must succeed, got %v", err)
	}
	if mock.deleteCalls != 0 {
		t.Fatal("delete must not be attempted for a missing event")
	}
}

func TestEventExists(t *testing.T) {
	mock := newMockClient("Home")
	a := NewAdapterWithClient(mock, "", testLogger())
	ctx := context.Background()

	id, err := a.CreateEvent(ctx, sampleFields())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	exists, err := a.EventExists(ctx, id)
	if err != nil {
		t.Fatalf("EventExists: %v", err)
	}
	if !exists {
		t.Fatal("expected event to exist")
	}

	exists, err = a.EventExists(ctx, "evt-gone")
	if err != nil {
		t.Fatalf("EventExists: %v", err)
	}
	if exists {
		t.Fatal("expected missing event to not exist")
	}
}

func TestOperations_CancelledContext(t *testing.T) {
	mock := newMockClient("Home")
	a := NewAdapterWithClient(mock, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.CreateEvent(ctx, sampleFields()); !errors.Is(err, context.Canceled) {
		t.Fatalf("CreateEvent error = %v, want context.Canceled", err)
	}
	if err := a.DeleteEvent(ctx, "evt-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("DeleteEvent error = %v, want context.Canceled", err)
	}
}
