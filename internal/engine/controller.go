// Package engine runs the event listener in its own execution context and
// controls its start/stop lifecycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/rpcbridge/internal/listener"
	"github.com/llehouerou/rpcbridge/internal/track"
)

const (
	// DefaultAddr matches the port the browser extension connects to.
	DefaultAddr = "127.0.0.1:8112"

	defaultQueueSize = 64
	// teardownWait bounds how long a new start waits for the previous
	// context to release its resources.
	teardownWait = 5 * time.Second
)

// ErrUnexpectedStop is reported when the listener ends without Stop.
var ErrUnexpectedStop = errors.New("listener stopped unexpectedly")

// Handler processes events, one at a time, in arrival order per client.
// Rejections travel through the same queue as events.
type Handler interface {
	HandleEvent(ev track.Event)
	RejectMessage(err error)
	// DroppedEvents is called once per execution context, after its
	// teardown, when n accepted messages were never handled.
	DroppedEvents(n int)
}

// Observer is told about lifecycle changes. Calls are made while the
// controller holds its lock, so they arrive in order and must not call back
// into the Controller.
type Observer interface {
	Started(addr net.Addr)
	Stopped()
	Failed(err error)
	Warn(msg string)
}

// Config configures the Controller.
type Config struct {
	Addr      string
	Listener  listener.Config
	QueueSize int
}

// Controller owns at most one execution context at a time.
type Controller struct {
	cfg     Config
	handler Handler
	obs     Observer
	log     *slog.Logger
	listen  func(network, addr string) (net.Listener, error)

	mu       sync.Mutex
	state    Lifecycle
	run      *execContext
	lastDone <-chan struct{}
	closed   bool
}

// New creates a stopped Controller.
func New(cfg Config, handler Handler, obs Observer, log *slog.Logger) *Controller {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		cfg:     cfg,
		handler: handler,
		obs:     obs,
		log:     log,
		listen:  net.Listen,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() Lifecycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Addr returns the bound address while running, nil otherwise.
func (c *Controller) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running || c.run == nil {
		return nil
	}
	return c.run.addr
}

// Start creates a fresh execution context and binds the listener in it.
// It returns immediately; the outcome is reported to the Observer.
// Starting while not stopped only produces a warning.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.state != Stopped {
		c.obs.Warn(fmt.Sprintf("server is already %s", lowerState(c.state)))
		return
	}
	c.state = Starting
	run := newExecContext(c.cfg.QueueSize)
	c.run = run
	go c.boot(run, c.lastDone)
}

// Stop signals the running context to shut down and returns without waiting
// for the teardown. It does nothing unless the engine is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Running {
		return
	}
	c.state = Stopping
	run := c.run
	run.cancel()
	c.run = nil
	c.lastDone = run.done
	c.state = Stopped
	c.log.Debug("engine stopping", "run", run.id)
	c.obs.Stopped()
}

// Close shuts the controller down for good, whatever its state, and waits
// for the current context to release the port. Start does nothing afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	run := c.run
	if run == nil {
		done := c.lastDone
		c.mu.Unlock()
		waitDone(done)
		return
	}
	wasRunning := c.state == Running
	run.cancel()
	c.run = nil
	c.lastDone = run.done
	c.state = Stopped
	if wasRunning {
		c.obs.Stopped()
	}
	c.mu.Unlock()
	c.log.Debug("engine closed", "run", run.id)
	waitDone(run.done)
}

func waitDone(done <-chan struct{}) {
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(teardownWait):
	}
}

// boot runs on the new context's goroutine for its whole life.
func (c *Controller) boot(run *execContext, prev <-chan struct{}) {
	defer close(run.done)

	if prev != nil {
		select {
		case <-prev:
		case <-run.ctx.Done():
		case <-time.After(teardownWait):
			c.log.Warn("previous engine context still tearing down", "run", run.id)
		}
	}

	var ln net.Listener
	var err error
	if run.ctx.Err() == nil {
		ln, err = c.listen("tcp", c.cfg.Addr)
	}

	c.mu.Lock()
	if run.ctx.Err() != nil {
		// Closed while starting; the bind, if any, is released here.
		if ln != nil {
			_ = ln.Close()
		}
		if c.run == run {
			c.state = Stopped
			c.run = nil
		}
		c.mu.Unlock()
		c.log.Debug("engine start abandoned", "run", run.id)
		return
	}
	if err != nil {
		c.state = Stopped
		c.run = nil
		run.cancel()
		c.obs.Failed(fmt.Errorf("listen on %s: %w", c.cfg.Addr, err))
		c.mu.Unlock()
		return
	}
	run.addr = ln.Addr()
	c.state = Running
	c.log.Debug("engine running", "run", run.id, "addr", run.addr)
	c.obs.Started(run.addr)
	c.mu.Unlock()

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		run.dispatch(c.handler)
	}()

	srv := listener.New(c.cfg.Listener, sinkFor(run), c.log.With("run", run.id))
	serveErr := srv.Serve(run.ctx, ln)

	c.mu.Lock()
	if c.run == run {
		// The listener died on its own rather than through Stop.
		c.state = Stopped
		c.run = nil
		c.lastDone = run.done
		if serveErr == nil {
			c.obs.Failed(ErrUnexpectedStop)
		} else {
			c.obs.Failed(fmt.Errorf("%w: %w", ErrUnexpectedStop, serveErr))
		}
		c.obs.Stopped()
	}
	c.mu.Unlock()

	run.cancel()
	<-dispatched
	// Serve has waited for every client, so the queue no longer grows.
	run.dropped.Add(int64(len(run.queue)))
	if n := run.dropped.Load(); n > 0 {
		c.handler.DroppedEvents(int(n))
	}
	c.log.Debug("engine context released", "run", run.id)
}

// execContext is one start/stop cycle: its own cancellation, event queue and
// bound address. It is never reused.
type execContext struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	queue  chan queued
	done   chan struct{}
	addr   net.Addr

	// dropped counts messages accepted from a client but never handled.
	dropped atomic.Int64
}

// queued is either an event or a rejection.
type queued struct {
	ev  track.Event
	err error
}

func newExecContext(queueSize int) *execContext {
	ctx, cancel := context.WithCancel(context.Background())
	return &execContext{
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan queued, queueSize),
		done:   make(chan struct{}),
	}
}

// dispatch hands queued items to h one at a time until the context ends.
func (r *execContext) dispatch(h Handler) {
	for {
		if r.ctx.Err() != nil {
			return
		}
		select {
		case <-r.ctx.Done():
			return
		case q := <-r.queue:
			if q.err != nil {
				h.RejectMessage(q.err)
			} else {
				h.HandleEvent(q.ev)
			}
		}
	}
}

// sink adapts an execContext to listener.Sink.
type sink struct {
	run *execContext
}

func sinkFor(run *execContext) listener.Sink {
	return sink{run: run}
}

func (s sink) Deliver(ctx context.Context, ev track.Event) error {
	return s.enqueue(ctx, queued{ev: ev})
}

func (s sink) Reject(err error) {
	_ = s.enqueue(s.run.ctx, queued{err: err})
}

func (s sink) enqueue(ctx context.Context, q queued) error {
	select {
	case s.run.queue <- q:
		return nil
	case <-ctx.Done():
		s.run.dropped.Add(1)
		return ctx.Err()
	case <-s.run.ctx.Done():
		s.run.dropped.Add(1)
		return s.run.ctx.Err()
	}
}

func lowerState(l Lifecycle) string {
	switch l {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}
