// Package events provides a small typed in-process event bus. Components
// publish facts about what happened (a sync pass finished, the session
// token was rejected) without knowing who, if anyone, is listening.
package events

import "sync"

// PassStats summarises a completed sync pass for subscribers.
type PassStats struct {
	Updated int
	Removed int
	Errors  int
}

// Bus is a synchronous publish/subscribe hub. Handlers run on the
// publisher's goroutine in subscription order; a handler that needs to do
// slow work should hand off to its own goroutine. The zero value is ready
// to use.
type Bus struct {
	mu            sync.Mutex
	unauthorized  []func(error)
	passCompleted []func(PassStats)
}

// SubscribeUnauthorized registers a handler for session-token rejections.
func (b *Bus) SubscribeUnauthorized(fn func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unauthorized = append(b.unauthorized, fn)
}

// PublishUnauthorized notifies subscribers that the backend rejected the
// session token.
func (b *Bus) PublishUnauthorized(err error) {
	for _, fn := range b.handlersUnauthorized() {
		fn(err)
	}
}

// SubscribePassCompleted registers a handler invoked after every sync pass.
func (b *Bus) SubscribePassCompleted(fn func(PassStats)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passCompleted = append(b.passCompleted, fn)
}

// PublishPassCompleted notifies subscribers that a sync pass finished.
func (b *Bus) PublishPassCompleted(stats PassStats) {
	for _, fn := range b.handlersPassCompleted() {
		fn(stats)
	}
}

// Handler slices are copied under the lock so a subscriber registered
// during publish does not mutate the slice mid-iteration.

func (b *Bus) handlersUnauthorized() []func(error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]func(error), len(b.unauthorized))
	copy(out, b.unauthorized)
	return out
}

func (b *Bus) handlersPassCompleted() []func(PassStats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]func(PassStats), len(b.passCompleted))
	copy(out, b.passCompleted)
	return out
}
