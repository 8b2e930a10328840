package listener

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/llehouerou/rpcbridge/internal/track"
)

var (
	// ErrMalformed is returned for events that cannot be turned into a track event.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownEvent is returned for event names the bridge does not handle.
	ErrUnknownEvent = errors.New("unknown event")
)

// Event names, in both spellings used by the browser extensions.
const (
	EventSongChanged = "songChanged"
	EventSongPaused  = "songPaused"

	eventSongChangedSnake = "song_changed"
	eventSongPausedSnake  = "song_paused"
)

// maxSeconds is the largest value that still fits a time.Duration.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// seconds accepts a JSON number or a numeric string.
type seconds float64

func (s *seconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		b = []byte(str)
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid seconds value %q", b)
	}
	if v > maxSeconds {
		return fmt.Errorf("seconds value %q out of range", b)
	}
	*s = seconds(v)
	return nil
}

func (s *seconds) duration() time.Duration {
	if s == nil || *s <= 0 {
		return 0
	}
	return time.Duration(float64(*s) * float64(time.Second))
}

type songChangedPayload struct {
	Artist   string   `json:"artist"`
	SongName string   `json:"songName"`
	Album    *string  `json:"album"`
	Duration *seconds `json:"duration"`
	Position *seconds `json:"position"`
	Paused   *bool    `json:"paused"`
}

type songPausedPayload struct {
	Paused *bool `json:"paused"`
}

// Decode turns one named event and its JSON payload into a track event.
// Validation happens here once; the reconciler trusts what it receives.
func Decode(name string, payload json.RawMessage) (track.Event, error) {
	switch name {
	case EventSongChanged, eventSongChangedSnake:
		return decodeSongChanged(payload)
	case EventSongPaused, eventSongPausedSnake:
		return decodeSongPaused(payload)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, name)
	}
}

func decodeSongChanged(payload json.RawMessage) (track.Event, error) {
	if isEmpty(payload) {
		return nil, fmt.Errorf("%w: %s without payload", ErrMalformed, EventSongChanged)
	}
	var p songChangedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, EventSongChanged, err)
	}
	switch {
	case p.Artist == "" && p.SongName == "":
		return nil, fmt.Errorf("%w: %s without artist and songName", ErrMalformed, EventSongChanged)
	case p.Artist == "":
		return nil, fmt.Errorf("%w: %s without artist", ErrMalformed, EventSongChanged)
	case p.SongName == "":
		return nil, fmt.Errorf("%w: %s without songName", ErrMalformed, EventSongChanged)
	}

	ev := track.Full{
		Artist:   p.Artist,
		Title:    p.SongName,
		Duration: p.Duration.duration(),
		Position: p.Position.duration(),
	}
	if p.Album != nil {
		ev.Album = *p.Album
	}
	if p.Paused != nil {
		ev.Paused = *p.Paused
	}
	return ev, nil
}

func decodeSongPaused(payload json.RawMessage) (track.Event, error) {
	ev := track.PauseOnly{Paused: true}
	if isEmpty(payload) {
		return ev, nil
	}
	var p songPausedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		// The payload is optional; anything that is not an object is ignored.
		return ev, nil //nolint:nilerr // payload is not required
	}
	if p.Paused != nil {
		ev.Paused = *p.Paused
	}
	return ev, nil
}

func isEmpty(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
