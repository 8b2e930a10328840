package presence

import (
	"time"

	"github.com/rivo/uniseg"

	"github.com/llehouerou/rpcbridge/internal/track"
)

// maxTextLen is the longest text field accepted by presence hosts, in
// user-perceived characters.
const maxTextLen = 128

// Button is a link shown under the presence.
type Button struct {
	Label string `koanf:"label"`
	URL   string `koanf:"url"`
}

// Assets configures the fixed images and captions of the payload.
type Assets struct {
	LargeImage   string   `koanf:"large_image"`
	LargeText    string   `koanf:"large_text"`
	PlayingImage string   `koanf:"playing_image"`
	PlayingText  string   `koanf:"playing_text"`
	PausedImage  string   `koanf:"paused_image"`
	PausedText   string   `koanf:"paused_text"`
	Buttons      []Button `koanf:"buttons"`
}

// DefaultAssets returns the asset keys registered for the default application.
func DefaultAssets() Assets {
	return Assets{
		LargeImage:   "embedded_cover",
		LargeText:    "VK Music",
		PlayingImage: "vk_logo",
		PlayingText:  "Listening on VK",
		PausedImage:  "pause_icon",
		PausedText:   "Paused",
	}
}

// Payload is what gets published to the host for one track state.
type Payload struct {
	Details    string // artist
	State      string // title
	Album      string
	LargeImage string
	LargeText  string
	SmallImage string
	SmallText  string
	Paused     bool
	Buttons    []Button

	// Start and End are set only when the duration is known.
	Start time.Time
	End   time.Time

	// Duration and Position are kept for hosts that report progress
	// rather than absolute timestamps.
	Duration time.Duration
	Position time.Duration
}

// HasTimestamps reports whether Start and End are set.
func (p Payload) HasTimestamps() bool {
	return !p.Start.IsZero()
}

// BuildPayload computes the presentation payload for s at now.
// The position used for timestamps is extrapolated from the capture time.
func BuildPayload(s *track.State, assets Assets, now time.Time) Payload {
	p := Payload{
		Details:    truncate(s.Artist),
		State:      truncate(s.Title),
		Album:      s.Album,
		LargeImage: assets.LargeImage,
		LargeText:  truncate(assets.LargeText),
		SmallImage: assets.PlayingImage,
		SmallText:  truncate(assets.PlayingText),
		Paused:     s.Paused,
		Duration:   s.Duration,
		Position:   s.PositionAt(now),
	}
	if s.Paused {
		p.SmallImage = assets.PausedImage
		p.SmallText = truncate(assets.PausedText)
	}
	if len(assets.Buttons) > 0 {
		p.Buttons = append([]Button(nil), assets.Buttons[:min(2, len(assets.Buttons))]...)
	}
	if s.Duration > 0 {
		p.Start = now.Add(-p.Position)
		p.End = p.Start.Add(s.Duration)
	}
	return p
}

// truncate cuts s to maxTextLen grapheme clusters.
func truncate(s string) string {
	if uniseg.GraphemeClusterCount(s) <= maxTextLen {
		return s
	}
	var out []byte
	n := 0
	state := -1
	rest := s
	for len(rest) > 0 && n < maxTextLen-1 {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		out = append(out, cluster...)
		n++
	}
	return string(out) + "…"
}
