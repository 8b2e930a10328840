// Package shell is the user-facing surface of the bridge: an interactive
// terminal UI and a headless runner. Both own the periodic presence
// reconnect trigger.
package shell

import (
	"time"

	"github.com/llehouerou/rpcbridge/internal/bridge"
	"github.com/llehouerou/rpcbridge/internal/presence"
	"github.com/llehouerou/rpcbridge/internal/track"
)

// DefaultReconnectInterval is how often the shell asks for a presence reconnect.
const DefaultReconnectInterval = 10 * time.Second

// MinReconnectInterval keeps the periodic reconnect from hammering an absent host.
const MinReconnectInterval = presence.MinRetryInterval

// Bridge is the part of bridge.Bridge the shell drives.
type Bridge interface {
	StartServer()
	StopServer()
	ReconnectPresence()
	ClearTrack()
	Events() <-chan bridge.Event
	Track() *track.State
	PresenceStatus() presence.Status
}

// TrackNotifier is told about every new track.
type TrackNotifier interface {
	TrackChanged(s *track.State) error
}

// Options configures both shells.
type Options struct {
	// ReconnectInterval <= 0 disables the periodic reconnect. Shorter
	// positive values are raised to MinReconnectInterval.
	ReconnectInterval time.Duration
	// HostName is shown next to the presence state.
	HostName string
	Notifier TrackNotifier
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o Options) reconnectInterval() time.Duration {
	if o.ReconnectInterval <= 0 {
		return 0
	}
	return max(o.ReconnectInterval, MinReconnectInterval)
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
