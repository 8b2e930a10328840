package track

import "time"

// Event is an inbound playback event. It is either Full or PauseOnly.
type Event interface {
	isEvent()
}

// Full carries a complete description of the playing track.
type Full struct {
	Artist   string
	Title    string
	Album    string
	Duration time.Duration
	Position time.Duration
	Paused   bool
}

func (Full) isEvent() {}

// PauseOnly toggles the pause flag of the current track.
type PauseOnly struct {
	Paused bool
}

func (PauseOnly) isEvent() {}
