package track

import (
	"fmt"
	"time"
)

// State is the last known playback state reported by the source.
// Values handed out by the Reconciler are copies; mutating them has no effect
// on the reconciled record.
type State struct {
	Artist   string
	Title    string
	Album    string
	Duration time.Duration
	Position time.Duration
	Paused   bool

	// CapturedAt is refreshed every time an event is applied. Position is
	// the position at that instant.
	CapturedAt time.Time
}

// Complete reports whether the state can be published (artist and title set).
func (s *State) Complete() bool {
	return s != nil && s.Artist != "" && s.Title != ""
}

// PositionAt extrapolates the playback position at now. A paused track stays
// where it was captured. The result never exceeds a known duration.
func (s *State) PositionAt(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	pos := s.Position
	if !s.Paused && !s.CapturedAt.IsZero() {
		if elapsed := now.Sub(s.CapturedAt); elapsed > 0 {
			pos += elapsed
		}
	}
	if s.Duration > 0 && pos > s.Duration {
		pos = s.Duration
	}
	return pos
}

// String returns "Artist - Title", with a pause marker when paused.
func (s *State) String() string {
	if s == nil {
		return ""
	}
	if s.Paused {
		return fmt.Sprintf("%s - %s (paused)", s.Artist, s.Title)
	}
	return fmt.Sprintf("%s - %s", s.Artist, s.Title)
}

// clone returns a detached copy, or nil.
func (s *State) clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
