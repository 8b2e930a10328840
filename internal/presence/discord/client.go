// Package discord publishes presence to a running Discord client over its
// local IPC socket.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/rpcbridge/internal/presence"
)

// DefaultClientID is the application registered for the bridge.
const DefaultClientID = "1381313733845975261"

// Dialer opens the IPC transport. It returns presence.ErrHostNotFound when no
// Discord client is listening.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Client implements presence.Host for Discord.
type Client struct {
	clientID string
	dial     Dialer
	pid      int
	log      *slog.Logger

	mu   sync.Mutex
	conn io.ReadWriteCloser
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the platform socket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Client for the given application id.
func New(clientID string, opts ...Option) *Client {
	if clientID == "" {
		clientID = DefaultClientID
	}
	c := &Client{
		clientID: clientID,
		dial:     dialIPC,
		pid:      os.Getpid(),
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements presence.Host.
func (c *Client) Name() string { return "Discord" }

// Connect dials the IPC socket and performs the handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	stop := closeOnDone(ctx, conn)
	defer stop()

	if err := writeFrame(conn, opHandshake, handshake{Version: 1, ClientID: c.clientID}); err != nil {
		_ = conn.Close()
		return err
	}
	op, body, err := readFrame(conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("handshake: %w", contextErr(ctx, err))
	}
	if op == opClose {
		_ = conn.Close()
		return fmt.Errorf("handshake rejected: %s", closeReason(body))
	}
	var ready response
	if err := json.Unmarshal(body, &ready); err != nil {
		_ = conn.Close()
		return fmt.Errorf("decode handshake reply: %w", err)
	}
	if ready.Evt != "READY" {
		_ = conn.Close()
		return fmt.Errorf("handshake: unexpected event %q", ready.Evt)
	}

	c.log.Debug("discord ipc connected", "client_id", c.clientID)
	c.conn = conn
	return nil
}

// Update sets the activity.
func (c *Client) Update(ctx context.Context, p presence.Payload) error {
	return c.setActivity(ctx, toActivity(p))
}

// Clear removes the activity.
func (c *Client) Clear(ctx context.Context) error {
	return c.setActivity(ctx, nil)
}

// Close closes the IPC connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	// Best effort: tell the client we are leaving.
	if d, ok := c.conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = d.SetWriteDeadline(time.Now().Add(time.Second))
	}
	_ = writeFrame(c.conn, opClose, struct{}{})
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) setActivity(ctx context.Context, act *activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return presence.ErrNotConnected
	}
	stop := closeOnDone(ctx, c.conn)
	defer stop()

	cmd := command{
		Cmd:   "SET_ACTIVITY",
		Args:  setActivityArgs{PID: c.pid, Activity: act},
		Nonce: uuid.NewString(),
	}
	if err := writeFrame(c.conn, opFrame, cmd); err != nil {
		return c.fail(ctx, err)
	}

	for {
		op, body, err := readFrame(c.conn)
		if err != nil {
			return c.fail(ctx, err)
		}
		switch op {
		case opPing:
			if err := writeFrame(c.conn, opPong, json.RawMessage(body)); err != nil {
				return c.fail(ctx, err)
			}
			continue
		case opClose:
			return c.fail(ctx, fmt.Errorf("connection closed by host: %s", closeReason(body)))
		}

		var resp response
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
		if resp.Nonce != cmd.Nonce {
			// Unrelated dispatch; keep waiting for our reply.
			continue
		}
		if resp.Evt == "ERROR" {
			var e errorData
			_ = json.Unmarshal(resp.Data, &e)
			return fmt.Errorf("set activity rejected (%d): %s", e.Code, e.Message)
		}
		return nil
	}
}

// fail drops the broken connection.
func (c *Client) fail(ctx context.Context, err error) error {
	_ = c.conn.Close()
	c.conn = nil
	return contextErr(ctx, err)
}

func toActivity(p presence.Payload) *activity {
	a := &activity{
		Type:    activityTypeListening,
		Details: p.Details,
		State:   p.State,
		Assets: &assets{
			LargeImage: p.LargeImage,
			LargeText:  p.LargeText,
			SmallImage: p.SmallImage,
			SmallText:  p.SmallText,
		},
	}
	if p.HasTimestamps() {
		a.Timestamps = &timestamps{Start: p.Start.Unix(), End: p.End.Unix()}
	}
	for _, b := range p.Buttons {
		a.Buttons = append(a.Buttons, button{Label: b.Label, URL: b.URL})
	}
	return a
}

func closeReason(body []byte) string {
	var e errorData
	if err := json.Unmarshal(body, &e); err != nil || e.Message == "" {
		return string(body)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// closeOnDone closes conn if ctx ends before stop is called, unblocking any
// pending read or write.
func closeOnDone(ctx context.Context, conn io.Closer) (stop func()) {
	d, hasDeadline := conn.(interface{ SetDeadline(time.Time) error })
	if hasDeadline {
		if deadline, ok := ctx.Deadline(); ok {
			_ = d.SetDeadline(deadline)
		}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			select {
			case <-done:
				return
			default:
			}
			_ = conn.Close()
		case <-done:
		}
	}()
	// stop returns once the watcher is gone, so a later cancel of ctx can
	// never close a healthy connection.
	return func() {
		close(done)
		<-exited
		if hasDeadline {
			_ = d.SetDeadline(time.Time{})
		}
	}
}

func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}

var _ presence.Host = (*Client)(nil)
