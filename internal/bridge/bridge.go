// Package bridge is the single entry point used by the shell. It wires the
// event listener, the track reconciler and the presence connection together
// and reports everything that happens as an ordered stream of Events.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/llehouerou/rpcbridge/internal/engine"
	"github.com/llehouerou/rpcbridge/internal/errmsg"
	"github.com/llehouerou/rpcbridge/internal/listener"
	"github.com/llehouerou/rpcbridge/internal/presence"
	"github.com/llehouerou/rpcbridge/internal/track"
)

// Config configures a Bridge.
type Config struct {
	// Addr is the host:port the listener binds to.
	Addr     string
	Listener listener.Config

	// Assets defaults to presence.DefaultAssets.
	Assets        *presence.Assets
	AutoReconnect bool
	RetryInterval time.Duration
	CallTimeout   time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Bridge owns one engine, one reconciler and one presence connection.
// All methods are safe for concurrent use and never block on the network.
type Bridge struct {
	log        *slog.Logger
	now        func() time.Time
	reconciler *track.Reconciler
	conn       *presence.Connection
	engine     *engine.Controller
	out        *outbox

	// mu serializes reconciliation with suspend/resume so that presence
	// sees snapshots in the same order as the shell.
	mu        sync.Mutex
	suspended bool

	cancelWorker context.CancelFunc
	workerDone   chan struct{}
	closeOnce    sync.Once
}

// New creates a Bridge publishing to host and starts its presence worker.
// The listener is not started; call StartServer.
func New(host presence.Host, cfg Config, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	assets := presence.DefaultAssets()
	if cfg.Assets != nil {
		assets = *cfg.Assets
	}

	b := &Bridge{
		log:        log,
		now:        cfg.Now,
		reconciler: track.NewReconciler(cfg.Now),
		out:        newOutbox(),
		workerDone: make(chan struct{}),
	}
	b.conn = presence.NewConnection(host,
		presence.WithClock(cfg.Now),
		presence.WithAssets(assets),
		presence.WithAutoReconnect(cfg.AutoReconnect),
		presence.WithRetryInterval(cfg.RetryInterval),
		presence.WithCallTimeout(cfg.CallTimeout),
		presence.WithObserver(b.onPresence),
		presence.WithLogger(log.With("component", "presence")),
	)
	hooks := engineHooks{b}
	b.engine = engine.New(engine.Config{Addr: cfg.Addr, Listener: cfg.Listener},
		hooks, hooks, log.With("component", "engine"))

	ctx, cancel := context.WithCancel(context.Background())
	b.cancelWorker = cancel
	go func() {
		defer close(b.workerDone)
		b.conn.Run(ctx)
	}()
	return b
}

// Events returns the stream of observable events. There is a single stream
// per Bridge; it is closed by Close.
func (b *Bridge) Events() <-chan Event {
	return b.out.out
}

// StartServer starts the listener. The outcome arrives as a
// ServerStartedEvent or an error log.
func (b *Bridge) StartServer() {
	b.engine.Start()
}

// StopServer stops the listener if it is running.
func (b *Bridge) StopServer() {
	b.engine.Stop()
}

// ServerState returns the engine lifecycle state.
func (b *Bridge) ServerState() engine.Lifecycle {
	return b.engine.State()
}

// ServerAddr returns the bound address, or nil when not running.
func (b *Bridge) ServerAddr() net.Addr {
	return b.engine.Addr()
}

// ReconnectPresence asks the presence connection to connect now,
// regardless of the retry interval. Nothing happens when already connected.
func (b *Bridge) ReconnectPresence() {
	b.conn.Reconnect()
}

// SetAutoReconnect enables or disables connecting on new tracks.
func (b *Bridge) SetAutoReconnect(enabled bool) {
	b.conn.SetAutoReconnect(enabled)
	if enabled {
		b.logf(LevelInfo, "Auto-reconnect enabled")
	} else {
		b.logf(LevelInfo, "Auto-reconnect disabled")
	}
}

// PresenceStatus returns the current presence connection status.
func (b *Bridge) PresenceStatus() presence.Status {
	return b.conn.Status()
}

// Track returns a copy of the current track, or nil before the first event.
func (b *Bridge) Track() *track.State {
	return b.reconciler.Current()
}

// ClearTrack forgets the current track and clears the presence host.
func (b *Bridge) ClearTrack() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reconciler.Clear()
	b.logf(LevelInfo, "Track cleared")
	b.out.send(TrackEvent{})
	if !b.suspended {
		b.conn.Publish(nil)
	}
}

// Suspend holds presence publishing, for example while the application
// updates itself. Tracks are still reconciled.
func (b *Bridge) Suspend() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.suspended {
		return
	}
	b.suspended = true
	b.logf(LevelInfo, "Presence updates suspended")
}

// Resume re-enables publishing and publishes the latest track.
func (b *Bridge) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.suspended {
		return
	}
	b.suspended = false
	b.logf(LevelInfo, "Presence updates resumed")

	cur := b.reconciler.Current()
	if cur == nil {
		return
	}
	if !cur.Complete() {
		cur = nil
	}
	b.conn.Publish(cur)
}

// Suspended reports whether publishing is held.
func (b *Bridge) Suspended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suspended
}

// Close shuts the listener down, even mid-start, and waits for its port to be
// released. It then stops the presence worker, which closes the host, and
// finally the event stream.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.engine.Close()
		b.cancelWorker()
		<-b.workerDone
		b.out.close()
	})
}

// handleEvent runs on the engine's dispatch goroutine.
func (b *Bridge) handleEvent(ev track.Event) {
	b.logf(LevelRecv, describe(ev))

	b.mu.Lock()
	defer b.mu.Unlock()

	next, publishable, err := b.reconciler.Apply(ev)
	if errors.Is(err, track.ErrNoPriorTrack) {
		b.logf(LevelWarning, "Pause event ignored: no track has been received yet")
		return
	}
	if err != nil {
		b.logf(LevelError, errmsg.Format(errmsg.OpTrackPause, err))
		return
	}

	if publishable != nil {
		b.out.send(TrackEvent{Track: next})
	} else {
		b.out.send(TrackEvent{})
	}
	if !b.suspended {
		b.conn.Publish(publishable)
	}
}

// onPresence runs on the presence worker goroutine.
func (b *Bridge) onPresence(e presence.Event) {
	switch e.Kind {
	case presence.EventConnecting:
		b.logf(LevelRPC, fmt.Sprintf("Connecting to %s...", e.Host))
		b.status(fmt.Sprintf("Connecting to %s...", e.Host))
	case presence.EventConnected:
		b.logf(LevelSuccess, "Connected to "+e.Host)
		b.status("Connected to " + e.Host)
	case presence.EventConnectFailed:
		if errors.Is(e.Err, presence.ErrHostNotFound) {
			b.logf(LevelWarning, fmt.Sprintf("%s not found (attempt %d)", e.Host, e.Status.RetryCount))
		} else {
			b.logf(LevelError, errmsg.FormatWith(errmsg.OpPresenceConnect, e.Host, e.Err))
		}
		b.status(e.Host + " not available")
	case presence.EventPublished:
		b.logf(LevelRPC, "Presence updated: "+e.Track.String())
	case presence.EventCleared:
		b.logf(LevelRPC, "Presence cleared")
	case presence.EventPublishFailed:
		b.logf(LevelError, errmsg.FormatWith(errmsg.OpPresenceUpdate, e.Host, e.Err))
		b.status("Disconnected from " + e.Host)
	case presence.EventHeld:
		b.logf(LevelInfo, fmt.Sprintf("%s not connected, presence not updated", e.Host))
	}
	b.out.send(PresenceEvent{Host: e.Host, Status: e.Status})
}

func (b *Bridge) logf(level Level, msg string) {
	b.log.Debug("bridge log", "level", level.String(), "msg", msg)
	b.out.send(LogEvent{Level: level, Message: msg, Time: b.now()})
}

func (b *Bridge) status(text string) {
	b.out.send(StatusEvent{Text: text})
}

func describe(ev track.Event) string {
	switch e := ev.(type) {
	case track.Full:
		s := fmt.Sprintf("Song changed: %s - %s", e.Artist, e.Title)
		if e.Paused {
			s += " (paused)"
		}
		return s
	case track.PauseOnly:
		if e.Paused {
			return "Song paused"
		}
		return "Song resumed"
	default:
		return fmt.Sprintf("Unknown event %T", ev)
	}
}

// engineHooks keeps the engine callbacks off the Bridge's public API.
type engineHooks struct {
	b *Bridge
}

func (h engineHooks) HandleEvent(ev track.Event) { h.b.handleEvent(ev) }

func (h engineHooks) RejectMessage(err error) {
	h.b.logf(LevelWarning, errmsg.Format(errmsg.OpMessageDecode, err))
}

func (h engineHooks) DroppedEvents(n int) {
	h.b.logf(LevelWarning, fmt.Sprintf("%d %s dropped when the server stopped", n, plural(n, "message")))
}

func (h engineHooks) Started(addr net.Addr) {
	h.b.logf(LevelServer, "Server started on "+addr.String())
	h.b.status("Server running on " + addr.String())
	h.b.out.send(ServerStartedEvent{Addr: addr})
}

func (h engineHooks) Stopped() {
	h.b.logf(LevelServer, "Server stopped")
	h.b.status("Server stopped")
	h.b.out.send(ServerStoppedEvent{})
}

func (h engineHooks) Failed(err error) {
	if errors.Is(err, engine.ErrUnexpectedStop) {
		h.b.logf(LevelError, err.Error())
		return
	}
	h.b.logf(LevelError, errmsg.Format(errmsg.OpServerStart, err))
	h.b.status("Server not running")
}

func (h engineHooks) Warn(msg string) {
	h.b.logf(LevelWarning, msg)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
