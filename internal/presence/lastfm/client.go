// Package lastfm reports the bridged track as "now playing" on Last.fm.
package lastfm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shkh/lastfm-go/lastfm"

	"github.com/llehouerou/rpcbridge/internal/presence"
)

// ErrNotAuthenticated is returned when no session key is configured.
var ErrNotAuthenticated = errors.New("not authenticated")

// api is the subset of the Last.fm API used here.
type api interface {
	userName() (string, error)
	updateNowPlaying(params lastfm.P) error
}

type remoteAPI struct {
	api *lastfm.Api
}

func (r remoteAPI) userName() (string, error) {
	info, err := r.api.User.GetInfo(nil)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

func (r remoteAPI) updateNowPlaying(params lastfm.P) error {
	_, err := r.api.Track.UpdateNowPlaying(params)
	return err
}

// Client implements presence.Host for Last.fm.
type Client struct {
	api        api
	sessionKey string

	mu        sync.Mutex
	connected bool
	username  string
	lastSent  string
}

// New creates a Last.fm host with the given API credentials and session key.
func New(apiKey, apiSecret, sessionKey string) *Client {
	a := lastfm.New(apiKey, apiSecret)
	if sessionKey != "" {
		a.SetSession(sessionKey)
	}
	return &Client{api: remoteAPI{api: a}, sessionKey: sessionKey}
}

// Name implements presence.Host.
func (c *Client) Name() string { return "Last.fm" }

// Username returns the account name resolved by Connect.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Connect checks that the session is valid.
func (c *Client) Connect(ctx context.Context) error {
	if c.sessionKey == "" {
		return ErrNotAuthenticated
	}
	name, err := callWithContext(ctx, c.api.userName)
	if err != nil {
		return fmt.Errorf("get user info: %w", err)
	}
	c.mu.Lock()
	c.connected = true
	c.username = name
	c.lastSent = ""
	c.mu.Unlock()
	return nil
}

// Update sends a now playing notification. Paused tracks and repeats of the
// last sent track are skipped, since Last.fm has no notion of pausing.
func (c *Client) Update(ctx context.Context, p presence.Payload) error {
	c.mu.Lock()
	connected, last := c.connected, c.lastSent
	c.mu.Unlock()
	if !connected {
		return presence.ErrNotConnected
	}
	if p.Paused {
		return nil
	}
	key := p.Details + "\x00" + p.State
	if key == last {
		return nil
	}

	params := lastfm.P{
		"artist": p.Details,
		"track":  p.State,
	}
	if p.Album != "" {
		params["album"] = p.Album
	}
	if p.Duration > 0 {
		params["duration"] = int(p.Duration.Seconds())
	}
	if _, err := callWithContext(ctx, func() (struct{}, error) {
		return struct{}{}, c.api.updateNowPlaying(params)
	}); err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}

	c.mu.Lock()
	c.lastSent = key
	c.mu.Unlock()
	return nil
}

// Clear forgets the last sent track. Last.fm expires now playing on its own.
func (c *Client) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return presence.ErrNotConnected
	}
	c.lastSent = ""
	return nil
}

// Close marks the client disconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.lastSent = ""
	return nil
}

// callWithContext runs fn, giving up when ctx ends. The lastfm library has
// no context support, so an abandoned call finishes in the background.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

var _ presence.Host = (*Client)(nil)
