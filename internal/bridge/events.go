package bridge

import (
	"net"
	"time"

	"github.com/llehouerou/rpcbridge/internal/presence"
	"github.com/llehouerou/rpcbridge/internal/track"
)

// Level classifies a log line shown to the user.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelSuccess
	LevelServer
	LevelRPC
	LevelRecv
)

// String returns the level tag.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelSuccess:
		return "SUCCESS"
	case LevelServer:
		return "SERVER"
	case LevelRPC:
		return "RPC"
	case LevelRecv:
		return "RECV"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered to the shell through Bridge.Events.
type Event interface {
	isEvent()
}

// LogEvent is a user-facing log line.
type LogEvent struct {
	Level   Level
	Message string
	Time    time.Time
}

// StatusEvent replaces the one-line status text.
type StatusEvent struct {
	Text string
}

// TrackEvent carries the new publishable track, or nil when there is none.
type TrackEvent struct {
	Track *track.State
}

// PresenceEvent reports a change of the presence connection.
type PresenceEvent struct {
	Host   string
	Status presence.Status
}

// ServerStartedEvent is sent once the listener is bound.
type ServerStartedEvent struct {
	Addr net.Addr
}

// ServerStoppedEvent is sent when the listener stops.
type ServerStoppedEvent struct{}

func (LogEvent) isEvent()           {}
func (StatusEvent) isEvent()        {}
func (TrackEvent) isEvent()         {}
func (PresenceEvent) isEvent()      {}
func (ServerStartedEvent) isEvent() {}
func (ServerStoppedEvent) isEvent() {}
