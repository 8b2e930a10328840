package presence

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/llehouerou/rpcbridge/internal/track"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBuildPayload_PlayingWithTimestamps(t *testing.T) {
	s := &track.State{Artist: "A", Title: "T", Duration: 200 * time.Second, Position: 10 * time.Second, CapturedAt: t0}

	p := BuildPayload(s, DefaultAssets(), t0)

	assert.Equal(t, "A", p.Details)
	assert.Equal(t, "T", p.State)
	assert.Equal(t, "vk_logo", p.SmallImage)
	assert.Equal(t, "Listening on VK", p.SmallText)
	assert.Equal(t, "embedded_cover", p.LargeImage)
	assert.True(t, p.HasTimestamps())
	assert.Equal(t, t0.Add(-10*time.Second), p.Start)
	assert.Equal(t, t0.Add(190*time.Second), p.End)
}

func TestBuildPayload_ExtrapolatesPosition(t *testing.T) {
	s := &track.State{Artist: "A", Title: "T", Duration: 200 * time.Second, Position: 10 * time.Second, CapturedAt: t0}

	p := BuildPayload(s, DefaultAssets(), t0.Add(3*time.Second))

	// Start stays anchored to when the track actually started.
	assert.Equal(t, t0.Add(-10*time.Second), p.Start)
	assert.Equal(t, 13*time.Second, p.Position)
}

func TestBuildPayload_PausedVariant(t *testing.T) {
	s := &track.State{Artist: "A", Title: "T", Paused: true, CapturedAt: t0}

	p := BuildPayload(s, DefaultAssets(), t0)

	assert.True(t, p.Paused)
	assert.Equal(t, "pause_icon", p.SmallImage)
	assert.Equal(t, "Paused", p.SmallText)
}

func TestBuildPayload_NoTimestampsWithoutDuration(t *testing.T) {
	s := &track.State{Artist: "A", Title: "T", Position: 10 * time.Second, CapturedAt: t0}

	p := BuildPayload(s, DefaultAssets(), t0)

	assert.False(t, p.HasTimestamps())
	assert.True(t, p.End.IsZero())
}

func TestBuildPayload_ButtonsCappedAtTwo(t *testing.T) {
	assets := DefaultAssets()
	assets.Buttons = []Button{{"a", "https://a"}, {"b", "https://b"}, {"c", "https://c"}}

	p := BuildPayload(&track.State{Artist: "A", Title: "T"}, assets, t0)

	assert.Len(t, p.Buttons, 2)
	p.Buttons[0].Label = "changed"
	assert.Equal(t, "a", assets.Buttons[0].Label)
}

func TestTruncate(t *testing.T) {
	short := "Привет"
	assert.Equal(t, short, truncate(short))

	long := strings.Repeat("é", 200)
	got := truncate(long)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, maxTextLen, len([]rune(got)))
}
