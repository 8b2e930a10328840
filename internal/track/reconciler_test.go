package track

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	var mu sync.Mutex
	now := start
	return func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}, func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
		}
}

func TestMerge_FullCreatesState(t *testing.T) {
	ev := Full{Artist: "A", Title: "T", Album: "Al", Duration: 200 * time.Second, Position: 10 * time.Second}

	next, pub, err := Merge(nil, ev, t0)

	require.NoError(t, err)
	require.NotNil(t, next)
	require.NotNil(t, pub)
	assert.Equal(t, State{
		Artist: "A", Title: "T", Album: "Al",
		Duration: 200 * time.Second, Position: 10 * time.Second,
		CapturedAt: t0,
	}, *next)
	assert.Equal(t, *next, *pub)
	assert.NotSame(t, next, pub)
}

func TestMerge_FullReplacesEverything(t *testing.T) {
	current := &State{Artist: "Old", Title: "Song", Album: "X", Duration: time.Minute, Paused: true, CapturedAt: t0}

	next, _, err := Merge(current, Full{Artist: "New", Title: "Other"}, t0.Add(time.Second))

	require.NoError(t, err)
	assert.Equal(t, "New", next.Artist)
	assert.Equal(t, "Other", next.Title)
	assert.Empty(t, next.Album)
	assert.Zero(t, next.Duration)
	// A Full event without a pause flag resumes playback.
	assert.False(t, next.Paused)
	assert.Equal(t, t0.Add(time.Second), next.CapturedAt)
	// The input is untouched.
	assert.Equal(t, "Old", current.Artist)
	assert.True(t, current.Paused)
}

func TestMerge_FullClampsNegativeNumbers(t *testing.T) {
	next, _, err := Merge(nil, Full{Artist: "A", Title: "T", Duration: -time.Second, Position: -5 * time.Second}, t0)

	require.NoError(t, err)
	assert.Zero(t, next.Duration)
	assert.Zero(t, next.Position)
}

func TestMerge_IncompleteFullIsNotPublishable(t *testing.T) {
	tests := []struct {
		name string
		ev   Full
	}{
		{"missing artist", Full{Title: "T"}},
		{"missing title", Full{Artist: "A"}},
		{"empty", Full{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, pub, err := Merge(nil, tt.ev, t0)
			require.NoError(t, err)
			assert.NotNil(t, next)
			assert.Nil(t, pub)
		})
	}
}

func TestMerge_PauseOnlyKeepsFields(t *testing.T) {
	current := &State{Artist: "A", Title: "T", Album: "Al", Duration: 200 * time.Second, Position: 10 * time.Second, CapturedAt: t0}
	later := t0.Add(30 * time.Second)

	next, pub, err := Merge(current, PauseOnly{Paused: true}, later)

	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.True(t, next.Paused)
	assert.Equal(t, later, next.CapturedAt)
	// Position is not re-derived on pause.
	assert.Equal(t, 10*time.Second, next.Position)
	assert.Equal(t, "A", next.Artist)
	assert.Equal(t, "T", next.Title)
	assert.Equal(t, "Al", next.Album)
	assert.False(t, current.Paused)
}

func TestMerge_PauseOnlyWithoutTrack(t *testing.T) {
	next, pub, err := Merge(nil, PauseOnly{Paused: true}, t0)

	require.ErrorIs(t, err, ErrNoPriorTrack)
	assert.Nil(t, next)
	assert.Nil(t, pub)
}

func TestMerge_PauseOnlyAfterClearIsDropped(t *testing.T) {
	cleared := &State{CapturedAt: t0}

	next, pub, err := Merge(cleared, PauseOnly{Paused: true}, t0.Add(time.Second))

	require.ErrorIs(t, err, ErrNoPriorTrack)
	assert.Equal(t, cleared, next)
	assert.Nil(t, pub)
}

func TestMerge_IdempotentForRepeatedFull(t *testing.T) {
	ev := Full{Artist: "A", Title: "T", Duration: 3 * time.Minute, Position: time.Minute, Paused: true}

	first, pub1, err := Merge(nil, ev, t0)
	require.NoError(t, err)
	second, pub2, err := Merge(first, ev, t0.Add(5*time.Second))
	require.NoError(t, err)

	pub1.CapturedAt = time.Time{}
	pub2.CapturedAt = time.Time{}
	assert.Equal(t, *pub1, *pub2)
	assert.Equal(t, t0.Add(5*time.Second), second.CapturedAt)
}

func TestMerge_LastFullWinsOverInterleavedPauses(t *testing.T) {
	events := []Event{
		Full{Artist: "A1", Title: "T1", Duration: time.Minute},
		PauseOnly{Paused: true},
		Full{Artist: "A2", Title: "T2", Album: "B", Duration: 2 * time.Minute, Position: 5 * time.Second},
		PauseOnly{Paused: true},
		PauseOnly{Paused: false},
		Full{Artist: "A3", Title: "T3", Duration: 3 * time.Minute, Position: 7 * time.Second, Paused: true},
	}

	var current *State
	for i, ev := range events {
		next, _, err := Merge(current, ev, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		current = next
	}

	assert.Equal(t, "A3", current.Artist)
	assert.Equal(t, "T3", current.Title)
	assert.Empty(t, current.Album)
	assert.Equal(t, 3*time.Minute, current.Duration)
	assert.Equal(t, 7*time.Second, current.Position)
	assert.True(t, current.Paused)
}

func TestReconciler_ApplyAndCurrent(t *testing.T) {
	clock, advance := fakeClock(t0)
	r := NewReconciler(clock)

	assert.Nil(t, r.Current())

	_, _, err := r.Apply(PauseOnly{Paused: true})
	require.ErrorIs(t, err, ErrNoPriorTrack)
	assert.Nil(t, r.Current())

	_, pub, err := r.Apply(Full{Artist: "A", Title: "T"})
	require.NoError(t, err)
	require.NotNil(t, pub)

	advance(time.Second)
	next, pub, err := r.Apply(PauseOnly{Paused: true})
	require.NoError(t, err)
	assert.True(t, next.Paused)
	assert.True(t, pub.Paused)
	assert.Equal(t, t0.Add(time.Second), r.Current().CapturedAt)

	// Copies never alias the owned state.
	next.Artist = "mutated"
	assert.Equal(t, "A", r.Current().Artist)
}

func TestReconciler_Clear(t *testing.T) {
	clock, _ := fakeClock(t0)
	r := NewReconciler(clock)
	_, _, err := r.Apply(Full{Artist: "A", Title: "T"})
	require.NoError(t, err)

	cleared := r.Clear()

	require.NotNil(t, cleared)
	assert.False(t, cleared.Complete())
	assert.False(t, r.Current().Complete())

	_, _, err = r.Apply(PauseOnly{Paused: true})
	assert.ErrorIs(t, err, ErrNoPriorTrack)
}

func TestState_PositionAt(t *testing.T) {
	tests := []struct {
		name  string
		state State
		at    time.Duration
		want  time.Duration
	}{
		{"playing advances", State{Position: 10 * time.Second, Duration: time.Minute, CapturedAt: t0}, 5 * time.Second, 15 * time.Second},
		{"paused holds", State{Position: 10 * time.Second, Duration: time.Minute, Paused: true, CapturedAt: t0}, 5 * time.Second, 10 * time.Second},
		{"capped at duration", State{Position: 50 * time.Second, Duration: time.Minute, CapturedAt: t0}, 30 * time.Second, time.Minute},
		{"unknown duration not capped", State{Position: 50 * time.Second, CapturedAt: t0}, 30 * time.Second, 80 * time.Second},
		{"clock behind capture", State{Position: 10 * time.Second, CapturedAt: t0}, -time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.PositionAt(t0.Add(tt.at)))
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "A - T", (&State{Artist: "A", Title: "T"}).String())
	assert.Equal(t, "A - T (paused)", (&State{Artist: "A", Title: "T", Paused: true}).String())
	var nilState *State
	assert.Empty(t, nilState.String())
	assert.False(t, nilState.Complete())
}
