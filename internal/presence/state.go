package presence

import "time"

// ConnState is the state of the connection to the presence host.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Backoff
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Backoff:
		return "Backoff"
	default:
		return "Unknown"
	}
}

// Status is a point-in-time view of the connection.
type Status struct {
	State       ConnState
	RetryCount  int
	LastAttempt time.Time // zero until the first connect attempt
}
