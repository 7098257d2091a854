package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/threeputt/teesync/internal/events"
	"github.com/threeputt/teesync/internal/model"
	"github.com/threeputt/teesync/internal/threeputt"
)

func newTestEngine(listing *mockListing) (*Engine, *Manager, *mockCalendar, *events.Bus) {
	cal := newMockCalendar()
	store := newMockStore()
	mgr := NewManager(cal, store, 0, testLogger())
	bus := &events.Bus{}
	return NewEngine(mgr, listing, bus, time.Minute, testLogger()), mgr, cal, bus
}

func TestRunOnce_RefreshesAndCleans(t *testing.T) {
	posting := samplePosting()
	gone := samplePosting()
	gone.ID = 43
	listing := &mockListing{postings: []*model.TeeTimePosting{posting, gone}}

	eng, mgr, _, bus := newTestEngine(listing)
	ctx := context.Background()

	mgr.Sync(ctx, posting, false)
	mgr.Sync(ctx, gone, false)

	var published []events.PassStats
	bus.SubscribePassCompleted(func(s events.PassStats) { published = append(published, s) })

	// The second posting disappears from the backend; its event must be
	// cleaned up while the first one is refreshed.
	posting.CourseName = "Augusta"
	listing.postings = []*model.TeeTimePosting{posting}

	stats, err := eng.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Updated != 1 {
		t.Errorf("updated = %d, want 1", stats.Updated)
	}
	if stats.Removed != 1 {
		t.Errorf("removed = %d, want 1", stats.Removed)
	}

	if len(published) != 1 {
		t.Fatalf("got %d pass events, want 1", len(published))
	}
	if published[0].Updated != 1 || published[0].Removed != 1 {
		t.Errorf("published stats = %+v", published[0])
	}
}

func TestRunOnce_NeverCreates(t *testing.T) {
	listing := &mockListing{postings: []*model.TeeTimePosting{samplePosting()}}
	eng, _, cal, _ := newTestEngine(listing)

	if _, err := eng.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if cal.createCalls != 0 {
		t.Fatal("a reconcile pass must never create events")
	}
}

func TestRunOnce_BackendError(t *testing.T) {
	listing := &mockListing{failPostings: errors.New("backend down")}
	eng, _, _, _ := newTestEngine(listing)

	if _, err := eng.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error when the backend is unreachable")
	}
}

func TestRunOnce_UnauthorizedPublishesEvent(t *testing.T) {
	listing := &mockListing{
		failPostings: fmt.Errorf("fetch postings: %w", threeputt.ErrUnauthorized),
	}
	eng, _, _, bus := newTestEngine(listing)

	var got []error
	bus.SubscribeUnauthorized(func(err error) { got = append(got, err) })

	if _, err := eng.RunOnce(context.Background()); !errors.Is(err, threeputt.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d unauthorized events, want 1", len(got))
	}
	if !errors.Is(got[0], threeputt.ErrUnauthorized) {
		t.Errorf("published error = %v", got[0])
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	listing := &mockListing{}
	eng, _, _, _ := newTestEngine(listing)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
