package presence

import (
	"context"
	"sync"
)

// fakeHost records calls and fails on demand.
type fakeHost struct {
	mu         sync.Mutex
	connectErr error
	updateErr  error
	clearErr   error
	connected  bool

	connects int
	updates  []Payload
	clears   int
	closes   int
}

func (f *fakeHost) Name() string { return "fake" }

func (f *fakeHost) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeHost) Update(_ context.Context, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrNotConnected
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, p)
	return nil
}

func (f *fakeHost) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrNotConnected
	}
	if f.clearErr != nil {
		return f.clearErr
	}
	f.clears++
	return nil
}

func (f *fakeHost) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.connected = false
	return nil
}

func (f *fakeHost) set(fn func(*fakeHost)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeHost) counts() (connects, updates, clears int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, len(f.updates), f.clears
}

func (f *fakeHost) lastUpdate() Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[len(f.updates)-1]
}

// recorder collects observer events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}
