package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/llehouerou/rpcbridge/internal/track"
)

const (
	// MinRetryInterval is the shortest allowed gap between two automatic
	// connect attempts.
	MinRetryInterval = 10 * time.Second
	// DefaultRetryInterval is the gap used when none is configured.
	DefaultRetryInterval = MinRetryInterval
	// DefaultCallTimeout bounds every call to the host.
	DefaultCallTimeout = 5 * time.Second
)

// EventKind identifies what happened on the connection.
type EventKind int

const (
	EventConnecting EventKind = iota
	EventConnected
	EventConnectFailed
	EventPublished
	EventCleared
	EventPublishFailed
	EventHeld // a state could not be published because the host is not connected
)

// Event is reported to the observer after every state transition or host call.
type Event struct {
	Kind    EventKind
	Status  Status
	Host    string
	Payload *Payload     // EventPublished
	Track   *track.State // EventPublished, EventHeld
	Err     error        // EventConnectFailed, EventPublishFailed
}

// Option configures a Connection.
type Option func(*Connection)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Connection) { c.now = now }
}

// WithRetryInterval sets the interval between automatic connect attempts.
// Values below MinRetryInterval are raised to it.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Connection) {
		if d > 0 {
			c.retryInterval = max(d, MinRetryInterval)
		}
	}
}

// WithCallTimeout bounds each host call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Connection) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithAssets sets the images and captions used in payloads.
func WithAssets(a Assets) Option {
	return func(c *Connection) { c.assets = a }
}

// WithAutoReconnect enables or disables connecting on publish.
func WithAutoReconnect(enabled bool) Option {
	return func(c *Connection) { c.autoReconnect = enabled }
}

// WithObserver receives every connection event, from the worker goroutine.
func WithObserver(fn func(Event)) Option {
	return func(c *Connection) { c.observe = fn }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) {
		if l != nil {
			c.log = l
		}
	}
}

// Connection drives a Host through Disconnected, Connecting, Connected and
// Backoff. All host calls happen on the goroutine running Run; Publish and
// Reconnect only leave work for it, so callers never block on the host.
type Connection struct {
	host          Host
	assets        Assets
	retryInterval time.Duration
	callTimeout   time.Duration
	now           func() time.Time
	observe       func(Event)
	log           *slog.Logger

	mu            sync.Mutex
	state         ConnState
	lastAttempt   time.Time
	retryCount    int
	autoReconnect bool

	// Pending work, latest wins.
	pendingMu        sync.Mutex
	pendingSet       bool
	pendingTrack     *track.State
	pendingReconnect bool
	wake             chan struct{}

	// Worker-only: the most recent snapshot handed to the worker.
	latest *track.State
}

// NewConnection creates a disconnected Connection for host.
func NewConnection(host Host, opts ...Option) *Connection {
	c := &Connection{
		host:          host,
		assets:        DefaultAssets(),
		retryInterval: DefaultRetryInterval,
		callTimeout:   DefaultCallTimeout,
		now:           time.Now,
		autoReconnect: true,
		log:           slog.New(slog.DiscardHandler),
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current connection status.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Connection) statusLocked() Status {
	return Status{State: c.state, RetryCount: c.retryCount, LastAttempt: c.lastAttempt}
}

// SetAutoReconnect enables or disables connecting when a track is published
// while disconnected. Explicit reconnects are not affected.
func (c *Connection) SetAutoReconnect(enabled bool) {
	c.mu.Lock()
	c.autoReconnect = enabled
	c.mu.Unlock()
}

// Publish hands a snapshot to the worker. A nil snapshot clears the host.
// Only the most recent unprocessed snapshot is kept.
func (c *Connection) Publish(snapshot *track.State) {
	c.pendingMu.Lock()
	c.pendingSet = true
	c.pendingTrack = snapshot
	c.pendingMu.Unlock()
	c.signal()
}

// Reconnect asks the worker to connect now, bypassing the retry interval.
// It does nothing if already connected.
func (c *Connection) Reconnect() {
	c.pendingMu.Lock()
	c.pendingReconnect = true
	c.pendingMu.Unlock()
	c.signal()
}

func (c *Connection) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run processes pending work until ctx is cancelled, then closes the host.
func (c *Connection) Run(ctx context.Context) {
	defer func() {
		if err := c.host.Close(); err != nil {
			c.log.Debug("close presence host", "host", c.host.Name(), "err", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
			c.drain(ctx)
		}
	}
}

func (c *Connection) drain(ctx context.Context) {
	c.pendingMu.Lock()
	reconnect := c.pendingReconnect
	set, snapshot := c.pendingSet, c.pendingTrack
	c.pendingReconnect, c.pendingSet, c.pendingTrack = false, false, nil
	c.pendingMu.Unlock()

	if set {
		c.latest = snapshot
	}
	if reconnect && c.handleReconnect(ctx) {
		return
	}
	if set && ctx.Err() == nil {
		c.handlePublish(ctx, snapshot)
	}
}

// handleReconnect connects if not connected and republishes the latest
// snapshot on success. It reports whether the connection is up.
func (c *Connection) handleReconnect(ctx context.Context) bool {
	c.mu.Lock()
	already := c.state == Connected
	c.mu.Unlock()
	if already {
		return false
	}
	if !c.connect(ctx, true) {
		return false
	}
	if c.latest != nil {
		c.publish(ctx, c.latest)
	}
	return true
}

// handlePublish publishes or clears according to the current state.
func (c *Connection) handlePublish(ctx context.Context, snapshot *track.State) {
	c.mu.Lock()
	state, auto := c.state, c.autoReconnect
	c.mu.Unlock()

	if state == Connected {
		c.publish(ctx, snapshot)
		return
	}
	if snapshot == nil {
		// Nothing is displayed while disconnected, so there is nothing to clear.
		return
	}
	if auto && c.connect(ctx, false) {
		c.publish(ctx, snapshot)
		return
	}
	c.emit(Event{Kind: EventHeld, Status: c.Status(), Track: snapshot})
}

// connect attempts Disconnected/Backoff -> Connecting -> Connected|Backoff.
// Unless forced, attempts closer than the retry interval are skipped.
// It returns true when the connection is established afterwards.
func (c *Connection) connect(ctx context.Context, force bool) bool {
	now := c.now()

	c.mu.Lock()
	switch c.state {
	case Connected:
		c.mu.Unlock()
		return true
	case Connecting:
		c.mu.Unlock()
		return false
	}
	if !force && !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.retryInterval {
		c.mu.Unlock()
		return false
	}
	c.state = Connecting
	c.lastAttempt = now
	status := c.statusLocked()
	c.mu.Unlock()
	c.emit(Event{Kind: EventConnecting, Status: status})

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	err := c.host.Connect(callCtx)
	cancel()

	c.mu.Lock()
	if err != nil {
		c.state = Backoff
		c.retryCount++
	} else {
		c.state = Connected
		c.retryCount = 0
	}
	status = c.statusLocked()
	c.mu.Unlock()

	if err != nil {
		c.log.Debug("presence connect failed", "host", c.host.Name(), "retry", status.RetryCount, "err", err)
		c.emit(Event{Kind: EventConnectFailed, Status: status, Err: err})
		return false
	}
	c.emit(Event{Kind: EventConnected, Status: status})
	return true
}

// publish sends snapshot (or a clear for nil) to a connected host.
func (c *Connection) publish(ctx context.Context, snapshot *track.State) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if !snapshot.Complete() {
		if err := c.host.Clear(callCtx); err != nil {
			c.disconnect(err)
			return
		}
		c.emit(Event{Kind: EventCleared, Status: c.Status()})
		return
	}

	payload := BuildPayload(snapshot, c.assets, c.now())
	if err := c.host.Update(callCtx, payload); err != nil {
		c.disconnect(err)
		return
	}
	c.emit(Event{Kind: EventPublished, Status: c.Status(), Payload: &payload, Track: snapshot})
}

// disconnect handles a rejected call: Connected -> Disconnected.
func (c *Connection) disconnect(err error) {
	if closeErr := c.host.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	c.mu.Lock()
	c.state = Disconnected
	c.retryCount = 0
	status := c.statusLocked()
	c.mu.Unlock()
	c.emit(Event{Kind: EventPublishFailed, Status: status, Err: err})
}

func (c *Connection) emit(e Event) {
	e.Host = c.host.Name()
	if c.observe != nil {
		c.observe(e)
	}
}
