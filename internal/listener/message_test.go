package listener

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/rpcbridge/internal/track"
)

func TestDecode_SongChanged(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
		want    track.Event
	}{
		{
			name:    "full payload",
			event:   "songChanged",
			payload: `{"artist":"A","songName":"T","album":"Al","duration":200,"position":10,"paused":false}`,
			want:    track.Full{Artist: "A", Title: "T", Album: "Al", Duration: 200 * time.Second, Position: 10 * time.Second},
		},
		{
			name:    "snake case name",
			event:   "song_changed",
			payload: `{"artist":"A","songName":"T"}`,
			want:    track.Full{Artist: "A", Title: "T"},
		},
		{
			name:    "fractional and string numbers",
			event:   "songChanged",
			payload: `{"artist":"A","songName":"T","duration":"180.5","position":1.25}`,
			want:    track.Full{Artist: "A", Title: "T", Duration: 180500 * time.Millisecond, Position: 1250 * time.Millisecond},
		},
		{
			name:    "negative numbers are clamped",
			event:   "songChanged",
			payload: `{"artist":"A","songName":"T","duration":-3,"position":-1}`,
			want:    track.Full{Artist: "A", Title: "T"},
		},
		{
			name:    "null optionals",
			event:   "songChanged",
			payload: `{"artist":"A","songName":"T","album":null,"duration":null,"paused":null}`,
			want:    track.Full{Artist: "A", Title: "T"},
		},
		{
			name:    "largest representable duration",
			event:   "songChanged",
			payload: `{"artist":"A","songName":"T","duration":9e9}`,
			want:    track.Full{Artist: "A", Title: "T", Duration: 9e9 * time.Second},
		},
		{
			name:    "paused flag",
			event:   "songChanged",
			payload: `{"artist":"A","songName":"T","paused":true}`,
			want:    track.Full{Artist: "A", Title: "T", Paused: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.event, json.RawMessage(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_SongChangedMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing songName", `{"artist":"A"}`},
		{"missing artist", `{"songName":"T"}`},
		{"empty strings", `{"artist":"","songName":""}`},
		{"no payload", ``},
		{"null payload", `null`},
		{"not an object", `[1,2]`},
		{"artist wrong type", `{"artist":1,"songName":"T"}`},
		{"duration garbage", `{"artist":"A","songName":"T","duration":"long"}`},
		{"duration beyond range", `{"artist":"A","songName":"T","duration":1e10}`},
		{"position beyond range", `{"artist":"A","songName":"T","position":"9.3e9"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(EventSongChanged, json.RawMessage(tt.payload))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecode_SongPaused(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
		want    track.Event
	}{
		{"no payload", "songPaused", ``, track.PauseOnly{Paused: true}},
		{"snake case", "song_paused", `null`, track.PauseOnly{Paused: true}},
		{"explicit resume", "songPaused", `{"paused":false}`, track.PauseOnly{Paused: false}},
		{"ignored junk", "songPaused", `"whatever"`, track.PauseOnly{Paused: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.event, json.RawMessage(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_UnknownEvent(t *testing.T) {
	_, err := Decode("volumeChanged", nil)
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Contains(t, err.Error(), "volumeChanged")
}
