// Package track merges partial playback events into a single current track.
package track

import (
	"errors"
	"sync"
	"time"
)

// ErrNoPriorTrack is returned when a pause event arrives before any track.
// It is a condition to report, not a failure.
var ErrNoPriorTrack = errors.New("no prior track")

// Merge applies ev to current and returns the new state plus the snapshot to
// publish. publishable is nil unless the new state is complete. Both results
// are fresh copies; current is never modified.
//
// A Full event replaces every field, including Paused. A PauseOnly event only
// touches Paused and CapturedAt; without a current track (nil or cleared) it
// is dropped and ErrNoPriorTrack is returned together with the unchanged current.
func Merge(current *State, ev Event, now time.Time) (next, publishable *State, err error) {
	switch e := ev.(type) {
	case Full:
		next = &State{
			Artist:     e.Artist,
			Title:      e.Title,
			Album:      e.Album,
			Duration:   nonNegative(e.Duration),
			Position:   nonNegative(e.Position),
			Paused:     e.Paused,
			CapturedAt: now,
		}
	case PauseOnly:
		if !current.Complete() {
			return current.clone(), nil, ErrNoPriorTrack
		}
		next = current.clone()
		next.Paused = e.Paused
		next.CapturedAt = now
	default:
		return current.clone(), publishableOf(current), nil
	}
	return next, publishableOf(next), nil
}

func publishableOf(s *State) *State {
	if !s.Complete() {
		return nil
	}
	return s.clone()
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Reconciler owns the current track. It is the single writer of that state;
// readers only ever get copies.
type Reconciler struct {
	mu      sync.Mutex
	current *State
	now     func() time.Time
}

// NewReconciler creates an empty Reconciler. A nil clock means time.Now.
func NewReconciler(now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{now: now}
}

// Apply merges ev into the current state.
func (r *Reconciler) Apply(ev Event) (next, publishable *State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, publishable, err = Merge(r.current, ev, r.now())
	if err != nil {
		return nil, nil, err
	}
	r.current = next
	return next.clone(), publishable, nil
}

// Clear resets the current track to an empty, unpublishable state.
// It returns the cleared state.
func (r *Reconciler) Clear() *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &State{CapturedAt: r.now()}
	return r.current.clone()
}

// Current returns a copy of the current state, or nil before the first event.
func (r *Reconciler) Current() *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.clone()
}
