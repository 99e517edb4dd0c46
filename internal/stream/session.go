// Package stream owns one authenticated WebSocket session against the
// Kalshi streaming API: it signs the upgrade request, sends the ticker
// subscription command, and runs the receive loop.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dwaltz/kalshi-watch/internal/auth"
)

// Handler consumes raw inbound frames. HandleMessage is called from the
// receive loop, one frame at a time, in receipt order; the next frame is
// not read until it returns. Returning an error terminates the session.
type Handler interface {
	HandleMessage(ctx context.Context, data []byte) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, data []byte) error

func (f HandlerFunc) HandleMessage(ctx context.Context, data []byte) error {
	return f(ctx, data)
}

// Config configures a Session.
type Config struct {
	URL              string        // Full WebSocket URL including the upgrade path
	HandshakeTimeout time.Duration // Dial handshake timeout
	WriteTimeout     time.Duration // Write deadline for outbound commands
}

// DefaultConfig returns sensible defaults for the given URL.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Session is one authenticated WebSocket connection. A Session runs at
// most once; create a new one per connection attempt.
type Session struct {
	cfg     Config
	signer  *auth.Credentials
	handler Handler
	logger  *slog.Logger

	state  atomic.Int32
	nextID int // next outbound command id, starts at 1
}

// New creates a Session. Frames are dispatched to handler synchronously
// from the receive loop.
func New(cfg Config, signer *auth.Credentials, handler Handler, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Session{
		cfg:     cfg,
		signer:  signer,
		handler: handler,
		logger:  logger,
		nextID:  1,
	}
}

// State returns the current lifecycle state. Safe to call concurrently
// with Run.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run connects, subscribes to the ticker channel, and consumes frames
// until the remote closes, the handler fails, or ctx is done.
//
// A clean remote close returns *CloseStatus; ctx cancellation returns
// ctx.Err() after releasing the socket; anything else is a stream error.
func (s *Session) Run(ctx context.Context) error {
	s.setState(StateConnecting)

	headers, err := s.signer.RequestHeaders(http.MethodGet, auth.WebSocketPath)
	if err != nil {
		s.setState(StateErrored)
		return err
	}
	header := http.Header{}
	for k, v := range headers {
		header.Set(k, v)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		if ctx.Err() != nil {
			s.setState(StateClosed)
			return ctx.Err()
		}
		s.setState(StateErrored)
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}

	// Closing the socket is what unblocks an in-flight ReadMessage, so a
	// watcher goroutine ties ctx cancellation to conn.Close. The stop
	// channel keeps it from outliving Run.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	if err := s.subscribe(conn); err != nil {
		s.setState(StateErrored)
		return fmt.Errorf("subscribe: %w", err)
	}

	s.setState(StateOpen)
	s.logger.Info("stream open", "url", s.cfg.URL)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				s.setState(StateClosed)
				s.logger.Info("stream cancelled", "reason", ctx.Err())
				return ctx.Err()
			}
			// Only a genuine close handshake counts as a clean close. An
			// abrupt TCP drop also surfaces as a *CloseError (code 1006,
			// abnormal closure) and must be reported as a stream error.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				var closeErr *websocket.CloseError
				errors.As(err, &closeErr)
				s.setState(StateClosed)
				s.logger.Info("stream closed by remote",
					"code", closeErr.Code,
					"reason", closeErr.Text,
				)
				return &CloseStatus{Code: closeErr.Code, Reason: closeErr.Text}
			}
			s.setState(StateErrored)
			return fmt.Errorf("read frame: %w", err)
		}

		if err := s.handler.HandleMessage(ctx, data); err != nil {
			s.setState(StateErrored)
			return fmt.Errorf("handle frame: %w", err)
		}
	}
}

// subscribe sends the one-shot ticker subscription command.
func (s *Session) subscribe(conn *websocket.Conn) error {
	cmd := Command{
		ID:     s.nextID,
		Cmd:    "subscribe",
		Params: SubscribeParams{Channels: []string{"ticker"}},
	}
	s.nextID++

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
