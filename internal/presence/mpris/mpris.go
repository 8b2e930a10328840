//go:build linux

// Package mpris exposes the bridged track as an MPRIS media player on the
// D-Bus session bus, so desktop widgets show it as now playing.
package mpris

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/llehouerou/rpcbridge/internal/presence"
)

// busName is the suffix of org.mpris.MediaPlayer2.<busName>.
const busName = "rpcbridge"

// Host implements presence.Host on top of an MPRIS server.
type Host struct {
	log *slog.Logger

	mu     sync.Mutex
	server *server.Server
	player *playerAdapter
}

// New creates an MPRIS host. Nothing is registered until Connect.
func New(log *slog.Logger) *Host {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Host{log: log}
}

// Name implements presence.Host.
func (h *Host) Name() string { return "MPRIS" }

// Connect registers the player on the session bus.
func (h *Host) Connect(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server != nil {
		return nil
	}
	if _, err := dbus.SessionBus(); err != nil {
		return fmt.Errorf("%w: %w", presence.ErrHostNotFound, err)
	}

	h.player = &playerAdapter{}
	h.server = server.NewServer(busName, &rootAdapter{}, h.player)

	srv := h.server
	go func() {
		if err := srv.Listen(); err != nil {
			h.log.Debug("mpris server stopped", "err", err)
		}
	}()
	return nil
}

// Update replaces the exported metadata and playback status.
func (h *Host) Update(_ context.Context, p presence.Payload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.player == nil {
		return presence.ErrNotConnected
	}
	h.player.set(&p, time.Now())
	return nil
}

// Clear reports a stopped player with no metadata.
func (h *Host) Clear(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.player == nil {
		return presence.ErrNotConnected
	}
	h.player.set(nil, time.Now())
	return nil
}

// Close unregisters the player and releases D-Bus resources.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server == nil {
		return nil
	}
	err := h.server.Stop()
	h.server = nil
	h.player = nil
	return err
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // The shell manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}

func (r *rootAdapter) Identity() (string, error) {
	return "RPC Bridge", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter. Playback is
// driven by the browser, so every control is a no-op.
type playerAdapter struct {
	mu         sync.RWMutex
	payload    *presence.Payload
	capturedAt time.Time
}

func (p *playerAdapter) set(payload *presence.Payload, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payload = payload
	p.capturedAt = now
}

func (p *playerAdapter) Next() error     { return nil }
func (p *playerAdapter) Previous() error { return nil }
func (p *playerAdapter) Pause() error    { return nil }
func (p *playerAdapter) PlayPause() error {
	return nil
}
func (p *playerAdapter) Stop() error { return nil }
func (p *playerAdapter) Play() error { return nil }

func (p *playerAdapter) Seek(_ types.Microseconds) error {
	return nil
}

func (p *playerAdapter) SetPosition(_ string, _ types.Microseconds) error {
	return nil
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch {
	case p.payload == nil:
		return types.PlaybackStatusStopped, nil
	case p.payload.Paused:
		return types.PlaybackStatusPaused, nil
	default:
		return types.PlaybackStatusPlaying, nil
	}
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.payload == nil {
		return types.Metadata{}, nil
	}
	return types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(p.payload.Details, p.payload.State)),
		Length:  types.Microseconds(p.payload.Duration.Microseconds()),
		Title:   p.payload.State,
		Artist:  []string{p.payload.Details},
		Album:   p.payload.Album,
	}, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetVolume(_ float64) error {
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return positionAt(p.payload, p.capturedAt, time.Now()).Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error)     { return false, nil }
func (p *playerAdapter) CanGoPrevious() (bool, error) { return false, nil }
func (p *playerAdapter) CanPlay() (bool, error)       { return false, nil }
func (p *playerAdapter) CanPause() (bool, error)      { return false, nil }
func (p *playerAdapter) CanSeek() (bool, error)       { return false, nil }
func (p *playerAdapter) CanControl() (bool, error)    { return false, nil }

// positionAt extrapolates the payload position to now.
func positionAt(p *presence.Payload, capturedAt, now time.Time) time.Duration {
	if p == nil {
		return 0
	}
	pos := p.Position
	if !p.Paused {
		pos += now.Sub(capturedAt)
	}
	if p.Duration > 0 && pos > p.Duration {
		pos = p.Duration
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

func formatTrackID(artist, title string) string {
	h := fnv.New64a()
	h.Write([]byte(artist))
	h.Write([]byte{0})
	h.Write([]byte(title))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}

var _ presence.Host = (*Host)(nil)
