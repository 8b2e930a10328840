// Package listener accepts playback events from the browser over Socket.IO
// (Engine.IO v4, WebSocket transport only) and hands them to a Sink.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/llehouerou/rpcbridge/internal/track"
)

// Path is where the Socket.IO endpoint is mounted.
const Path = "/socket.io/"

const (
	DefaultPingInterval    = 25 * time.Second
	DefaultPingTimeout     = 20 * time.Second
	DefaultMaxMessageBytes = 1 << 20
)

// Sink receives decoded events and rejected messages.
type Sink interface {
	// Deliver queues ev for processing. It may block to apply back-pressure;
	// it returns an error once the sink is shutting down.
	Deliver(ctx context.Context, ev track.Event) error
	// Reject reports a message that was dropped.
	Reject(err error)
}

// Config controls the endpoint.
type Config struct {
	PingInterval    time.Duration
	PingTimeout     time.Duration
	MaxMessageBytes int64
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = DefaultPingTimeout
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	return c
}

// Server serves the event endpoint. Each client connection is read by a
// single goroutine, so events from one client reach the Sink in order.
type Server struct {
	cfg  Config
	sink Sink
	log  *slog.Logger

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
}

// New creates a Server delivering to sink.
func New(cfg Config, sink Sink, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{cfg: cfg.withDefaults(), sink: sink, log: log}
}

// Handler returns the HTTP handler for the endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleSocket)
	return mux
}

// Serve accepts connections on ln until ctx is cancelled. It closes ln and
// every client connection before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = srv.Close()
		case <-stopped:
		}
	}()

	err := srv.Serve(ln)
	close(stopped)

	// Hijacked WebSocket connections are not tracked by http.Server; they
	// end when ctx does.
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	cancel()
	s.sessions.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type engineError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		http.Error(w, "server stopping", http.StatusServiceUnavailable)
		return
	}
	s.sessions.Add(1)
	s.mu.Unlock()
	defer s.sessions.Done()

	q := r.URL.Query()
	if q.Get("EIO") != "4" {
		writeEngineError(w, engineError{Code: 5, Message: "Unsupported protocol version"})
		return
	}
	if q.Get("transport") != "websocket" {
		writeEngineError(w, engineError{Code: 0, Message: "Transport unknown"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Debug("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageBytes)

	id := uuid.NewString()
	sess := &session{
		id:     id,
		conn:   conn,
		server: s,
		pong:   make(chan struct{}, 1),
		log:    s.log.With("sid", id, "remote", r.RemoteAddr),
	}
	sess.run(r.Context())
}

func writeEngineError(w http.ResponseWriter, e engineError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(e)
}

// session is one Engine.IO connection.
type session struct {
	id        string
	conn      *websocket.Conn
	server    *Server
	pong      chan struct{}
	log       *slog.Logger
	connected bool // socket.io namespace joined; reader goroutine only
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	s.log.Debug("client connected")
	status, reason := websocket.StatusNormalClosure, ""
	defer func() {
		_ = s.conn.Close(status, reason)
		s.log.Debug("client disconnected", "reason", reason)
	}()

	open, err := json.Marshal(map[string]any{
		"sid":          s.id,
		"upgrades":     []string{},
		"pingInterval": s.server.cfg.PingInterval.Milliseconds(),
		"pingTimeout":  s.server.cfg.PingTimeout.Milliseconds(),
		"maxPayload":   s.server.cfg.MaxMessageBytes,
	})
	if err != nil {
		return
	}
	if err := s.write(ctx, string(eioOpen)+string(open)); err != nil {
		return
	}

	go s.heartbeat(ctx, cancel)

	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil && parent.Err() != nil:
				status, reason = websocket.StatusGoingAway, "server stopping"
			case ctx.Err() != nil:
				status, reason = websocket.StatusPolicyViolation, "ping timeout"
			default:
				reason = err.Error()
			}
			return
		}
		if typ != websocket.MessageText {
			s.server.sink.Reject(fmt.Errorf("%w: binary frame from %s", ErrMalformed, s.id))
			continue
		}
		if done := s.handleEngine(ctx, string(data)); done {
			reason = "client closed"
			return
		}
	}
}

// heartbeat sends pings and cancels the session when a pong is late.
func (s *session) heartbeat(ctx context.Context, cancel context.CancelFunc) {
	interval := s.server.cfg.PingInterval
	timeout := s.server.cfg.PingTimeout
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := s.write(ctx, string(eioPing)); err != nil {
			cancel()
			return
		}
		timer.Reset(timeout)
		select {
		case <-ctx.Done():
			return
		case <-s.pong:
			timer.Reset(interval)
		case <-timer.C:
			s.log.Debug("ping timeout")
			cancel()
			return
		}
	}
}

// handleEngine processes one Engine.IO packet. It returns true when the
// client asked to close.
func (s *session) handleEngine(ctx context.Context, msg string) bool {
	if msg == "" {
		s.server.sink.Reject(fmt.Errorf("%w: empty packet", ErrMalformed))
		return false
	}
	switch msg[0] {
	case eioClose:
		return true
	case eioPing:
		_ = s.write(ctx, string(eioPong)+msg[1:])
	case eioPong:
		select {
		case s.pong <- struct{}{}:
		default:
		}
	case eioMessage:
		return s.handleSocketIO(ctx, msg[1:])
	case eioNoop, eioUpgrade:
	default:
		s.server.sink.Reject(fmt.Errorf("%w: unknown engine.io packet %q", ErrMalformed, msg[:1]))
	}
	return false
}

func (s *session) handleSocketIO(ctx context.Context, msg string) bool {
	p, err := parseSIO(msg)
	if err != nil {
		s.server.sink.Reject(err)
		return false
	}

	if p.Namespace != defaultNamespace {
		if p.Type == sioConnect {
			s.send(ctx, sioConnectError, p.Namespace, -1, map[string]string{"message": "Invalid namespace"})
		}
		s.server.sink.Reject(fmt.Errorf("%w: namespace %q", ErrMalformed, p.Namespace))
		return false
	}

	switch p.Type {
	case sioConnect:
		s.connected = true
		s.send(ctx, sioConnect, p.Namespace, -1, map[string]string{"sid": s.id})
	case sioDisconnect:
		return true
	case sioEvent:
		if !s.connected {
			s.server.sink.Reject(fmt.Errorf("%w: event before namespace connect", ErrMalformed))
			return false
		}
		s.handleEvent(ctx, p)
	case sioAck:
		// The server never asks for acknowledgements.
	default:
		s.server.sink.Reject(fmt.Errorf("%w: unsupported socket.io packet %q", ErrMalformed, string(p.Type)))
	}
	return false
}

func (s *session) handleEvent(ctx context.Context, p sioPacket) {
	name, payload, err := eventArgs(p.Data)
	if err != nil {
		s.server.sink.Reject(err)
		return
	}
	ev, err := Decode(name, payload)
	if err != nil {
		s.server.sink.Reject(err)
		return
	}
	if err := s.server.sink.Deliver(ctx, ev); err != nil {
		s.log.Debug("event not delivered", "event", name, "err", err)
		return
	}
	if p.AckID >= 0 {
		s.send(ctx, sioAck, p.Namespace, p.AckID, []any{})
	}
}

func (s *session) send(ctx context.Context, typ byte, namespace string, ackID int, data any) {
	msg, err := encodeSIO(typ, namespace, ackID, data)
	if err != nil {
		s.log.Debug("encode packet", "err", err)
		return
	}
	_ = s.write(ctx, msg)
}

func (s *session) write(ctx context.Context, msg string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, []byte(msg))
}
