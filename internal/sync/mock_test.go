package sync

import (
	"context"
	"fmt"
	"sync"

	"github.com/threeputt/teesync/internal/model"
	"github.com/threeputt/teesync/internal/state"
)

// --- Mock Calendar Store -----------------------------------------------------

type mockCalendar struct {
	mu      sync.Mutex
	access  bool
	events  map[string]model.EventFields // eventID → fields
	nextID  int

	requestCalls int
	createCalls  int
	updateCalls  int
	deleteCalls  int

	grantOnRequest bool
	failCreate     error
	failUpdate     error
	failDelete     error
}

func newMockCalendar() *mockCalendar {
	return &mockCalendar{access: true, events: make(map[string]model.EventFields)}
}

func (m *mockCalendar) HasAccess(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access
}

func (m *mockCalendar) RequestAccess(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCalls++
	if m.grantOnRequest {
		m.access = true
	}
	return m.access, nil
}

func (m *mockCalendar) CreateEvent(_ context.Context, fields model.EventFields) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.failCreate != nil {
		return "", m.failCreate
	}
	m.nextID++
	id := fmt.Sprintf("evt-%d", m.nextID)
	m.events[id] = fields
	return id, nil
}

func (m *mockCalendar) UpdateEvent(_ context.Context, eventID string, fields model.EventFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.failUpdate != nil {
		return m.failUpdate
	}
	if _, ok := m.events[eventID]; !ok {
		return fmt.Errorf("event %q not found", eventID)
	}
	m.events[eventID] = fields
	return nil
}

func (m *mockCalendar) DeleteEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.failDelete != nil {
		return m.failDelete
	}
	// Deleting a missing event succeeds, matching the adapter.
	delete(m.events, eventID)
	return nil
}

func (m *mockCalendar) EventExists(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *mockCalendar) get(eventID string) (model.EventFields, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.events[eventID]
	return f, ok
}

func (m *mockCalendar) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockCalendar) setAccess(granted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = granted
}

// --- Mock Mapping Store ------------------------------------------------------

type mockStore struct {
	mu       sync.Mutex
	mappings map[model.Ref]*state.Mapping

	failSave error
	failGet  error
}

func newMockStore() *mockStore {
	return &mockStore{mappings: make(map[model.Ref]*state.Mapping)}
}

func (m *mockStore) Save(_ context.Context, mapping *state.Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	cp := *mapping
	m.mappings[mapping.Ref] = &cp
	return nil
}

func (m *mockStore) Get(_ context.Context, ref model.Ref) (*state.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	mapping, ok := m.mappings[ref]
	if !ok {
		return nil, nil
	}
	cp := *mapping
	return &cp, nil
}

func (m *mockStore) GetAll(_ context.Context) ([]*state.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*state.Mapping
	for _, mapping := range m.mappings {
		cp := *mapping
		result = append(result, &cp)
	}
	return result, nil
}

func (m *mockStore) Delete(_ context.Context, ref model.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mappings, ref)
	return nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mappings)
}

// --- Mock Listing Source -----------------------------------------------------

type mockListing struct {
	mu           sync.Mutex
	postings     []*model.TeeTimePosting
	reservations []*model.Reservation

	failPostings     error
	failReservations error
}

func (m *mockListing) Postings(_ context.Context) ([]*model.TeeTimePosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPostings != nil {
		return nil, m.failPostings
	}
	return m.postings, nil
}

func (m *mockListing) Reservations(_ context.Context) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReservations != nil {
		return nil, m.failReservations
	}
	return m.reservations, nil
}
