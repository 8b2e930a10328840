package notify

import (
	"fmt"
	"html"
	"sync"

	"github.com/llehouerou/rpcbridge/internal/track"
)

// Tracker shows one notification per track, replacing the previous one so
// that a burst of track changes leaves a single popup.
type Tracker struct {
	n       Notifier
	timeout int32

	mu      sync.Mutex
	enabled bool
	lastID  uint32
	lastKey string
}

// NewTracker creates an enabled Tracker. timeoutMS <= 0 uses the server default.
func NewTracker(n Notifier, timeoutMS int) *Tracker {
	timeout := int32(timeoutMS)
	if timeoutMS <= 0 {
		timeout = -1
	}
	return &Tracker{n: n, timeout: timeout, enabled: true}
}

// SetEnabled turns notifications on or off. Turning them off closes the
// current notification.
func (t *Tracker) SetEnabled(enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if enabled || t.lastID == 0 {
		return nil
	}
	id := t.lastID
	t.lastID = 0
	return t.n.Dismiss(id)
}

// TrackChanged notifies about s unless it is the track already shown.
// Pause changes and incomplete tracks are not notified.
func (t *Tracker) TrackChanged(s *track.State) error {
	if !s.Complete() {
		return nil
	}
	key := s.Artist + "\x00" + s.Title + "\x00" + s.Album

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || key == t.lastKey {
		return nil
	}
	t.lastKey = key

	id, err := t.n.Show(popupFor(s, t.timeout, t.lastID))
	if err != nil {
		return err
	}
	t.lastID = id
	return nil
}

// popupFor shows the title as the summary and "Artist - Album" as the body.
func popupFor(s *track.State, timeout int32, replaces uint32) Popup {
	body := s.Artist
	if s.Album != "" {
		body = fmt.Sprintf("%s - %s", s.Artist, s.Album)
	}
	return Popup{
		Title:      s.Title,
		Body:       html.EscapeString(body),
		Icon:       "media-playback-start",
		Timeout:    timeout,
		ReplacesID: replaces,
	}
}
