//go:build linux

package mpris

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/quarckster/go-mpris-server/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/rpcbridge/internal/presence"
)

func TestPlayerAdapter_StatusFollowsPayload(t *testing.T) {
	p := &playerAdapter{}
	now := time.Now()

	status, err := p.PlaybackStatus()
	require.NoError(t, err)
	assert.Equal(t, types.PlaybackStatusStopped, status)

	p.set(&presence.Payload{Details: "A", State: "T", Duration: time.Minute}, now)
	status, _ = p.PlaybackStatus()
	assert.Equal(t, types.PlaybackStatusPlaying, status)

	meta, err := p.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "T", meta.Title)
	assert.Equal(t, []string{"A"}, meta.Artist)
	assert.Equal(t, types.Microseconds(time.Minute.Microseconds()), meta.Length)

	p.set(&presence.Payload{Details: "A", State: "T", Paused: true}, now)
	status, _ = p.PlaybackStatus()
	assert.Equal(t, types.PlaybackStatusPaused, status)

	p.set(nil, now)
	meta, _ = p.Metadata()
	assert.Empty(t, meta.Title)
}

func TestPositionAt(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	playing := &presence.Payload{Position: 10 * time.Second, Duration: time.Minute}
	paused := &presence.Payload{Position: 10 * time.Second, Duration: time.Minute, Paused: true}

	assert.Equal(t, 15*time.Second, positionAt(playing, at, at.Add(5*time.Second)))
	assert.Equal(t, 10*time.Second, positionAt(paused, at, at.Add(5*time.Second)))
	assert.Equal(t, time.Minute, positionAt(playing, at, at.Add(time.Hour)))
	assert.Zero(t, positionAt(nil, at, at))
}

func TestFormatTrackID_Stable(t *testing.T) {
	a := formatTrackID("A", "T")
	assert.Equal(t, a, formatTrackID("A", "T"))
	assert.NotEqual(t, a, formatTrackID("AT", ""))
	assert.Contains(t, a, "/org/mpris/MediaPlayer2/Track/")
}

func TestHost_UpdateBeforeConnect(t *testing.T) {
	h := New(nil)
	assert.ErrorIs(t, h.Update(context.Background(), presence.Payload{}), presence.ErrNotConnected)
	assert.ErrorIs(t, h.Clear(context.Background()), presence.ErrNotConnected)
	assert.NoError(t, h.Close())
}

func TestHost_ConnectOnSessionBus(t *testing.T) {
	// Skip if no D-Bus session (CI environment)
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("no D-Bus session available")
	}

	h := New(nil)
	require.NoError(t, h.Connect(context.Background()))
	require.NoError(t, h.Update(context.Background(), presence.Payload{Details: "A", State: "T"}))
	require.NoError(t, h.Close())
}
