// Package presence keeps an external presence host in sync with the current track.
package presence

import (
	"context"
	"errors"
)

var (
	// ErrHostNotFound is returned by Host.Connect when the host is not running.
	ErrHostNotFound = errors.New("presence host not found")
	// ErrNotConnected is returned by Update and Clear before a successful Connect.
	ErrNotConnected = errors.New("presence host not connected")
)

// Host is an external process that displays presence to third parties.
// Calls may block; the Connection always invokes them with a deadline and
// never concurrently.
type Host interface {
	// Name identifies the host in log messages.
	Name() string
	Connect(ctx context.Context) error
	Update(ctx context.Context, p Payload) error
	Clear(ctx context.Context) error
	// Close drops the connection. It is safe to call when not connected.
	Close() error
}
