package stream

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dwaltz/kalshi-watch/internal/auth"
)

func testSigner(t *testing.T) *auth.Credentials {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &auth.Credentials{KeyID: "stream-key", PrivateKey: key}
}

// wsServer upgrades one connection and hands it to serve on its own
// goroutine. The returned URL uses the ws scheme.
func wsServer(t *testing.T, serve func(r *http.Request, conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		serve(r, conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type collectingHandler struct {
	frames [][]byte
}

func (h *collectingHandler) HandleMessage(ctx context.Context, data []byte) error {
	h.frames = append(h.frames, append([]byte(nil), data...))
	return nil
}

func TestRun_SubscribesThenReportsCleanClose(t *testing.T) {
	url := wsServer(t, func(r *http.Request, conn *websocket.Conn) {
		if r.Header.Get("KALSHI-ACCESS-KEY") != "stream-key" {
			t.Errorf("KALSHI-ACCESS-KEY = %q", r.Header.Get("KALSHI-ACCESS-KEY"))
		}
		if r.Header.Get("KALSHI-ACCESS-SIGNATURE") == "" {
			t.Error("missing KALSHI-ACCESS-SIGNATURE on upgrade request")
		}
		if r.Header.Get("KALSHI-ACCESS-TIMESTAMP") == "" {
			t.Error("missing KALSHI-ACCESS-TIMESTAMP on upgrade request")
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read subscribe command: %v", err)
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			t.Errorf("decode subscribe command: %v", err)
			return
		}
		if cmd.ID != 1 {
			t.Errorf("command id = %d, want 1", cmd.ID)
		}
		if cmd.Cmd != "subscribe" {
			t.Errorf("command cmd = %q, want subscribe", cmd.Cmd)
		}
		params, _ := cmd.Params.(map[string]any)
		channels, _ := params["channels"].([]any)
		if len(channels) != 1 || channels[0] != "ticker" {
			t.Errorf("command channels = %v, want [ticker]", channels)
		}

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ticker","msg":{"market_id":"A"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ticker","msg":{"market_id":"B"}}`))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		// Give the client a moment to read the close frame.
		conn.ReadMessage()
	})

	handler := &collectingHandler{}
	session := New(DefaultConfig(url), testSigner(t), handler, nil)

	err := session.Run(context.Background())

	var closeStatus *CloseStatus
	if !errors.As(err, &closeStatus) {
		t.Fatalf("Run returned %v, want *CloseStatus", err)
	}
	if closeStatus.Code != websocket.CloseNormalClosure {
		t.Errorf("close code = %d, want %d", closeStatus.Code, websocket.CloseNormalClosure)
	}
	if closeStatus.Reason != "done" {
		t.Errorf("close reason = %q, want done", closeStatus.Reason)
	}
	if session.State() != StateClosed {
		t.Errorf("state = %s, want closed", session.State())
	}
	if len(handler.frames) != 2 {
		t.Fatalf("handler received %d frames, want 2", len(handler.frames))
	}
	if !strings.Contains(string(handler.frames[0]), `"market_id":"A"`) {
		t.Errorf("frames delivered out of order: %s", handler.frames[0])
	}
}

func TestRun_CancellationClosesSession(t *testing.T) {
	started := make(chan struct{})
	url := wsServer(t, func(r *http.Request, conn *websocket.Conn) {
		conn.ReadMessage() // subscribe command
		close(started)
		conn.ReadMessage() // blocks until the client drops the socket
	})

	session := New(DefaultConfig(url), testSigner(t), HandlerFunc(func(ctx context.Context, data []byte) error {
		return nil
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("session never connected")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not unwind after cancellation")
	}
	if session.State() != StateClosed {
		t.Errorf("state = %s, want closed", session.State())
	}
}

func TestRun_AbruptConnectionDropIsStreamError(t *testing.T) {
	url := wsServer(t, func(r *http.Request, conn *websocket.Conn) {
		conn.ReadMessage() // subscribe command
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ticker","msg":{"market_id":"A"}}`))
		// Drop the TCP connection without a close handshake. The client
		// sees this as close code 1006 (abnormal closure), which must not
		// be reported as a clean close.
		conn.UnderlyingConn().Close()
	})

	handler := &collectingHandler{}
	session := New(DefaultConfig(url), testSigner(t), handler, nil)

	err := session.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error for an abrupt connection drop")
	}
	var closeStatus *CloseStatus
	if errors.As(err, &closeStatus) {
		t.Errorf("abrupt drop reported as clean close: %v", err)
	}
	if session.State() != StateErrored {
		t.Errorf("state = %s, want errored", session.State())
	}
	if len(handler.frames) != 1 {
		t.Errorf("handler received %d frames before the drop, want 1", len(handler.frames))
	}
}

func TestRun_GoingAwayIsCleanClose(t *testing.T) {
	url := wsServer(t, func(r *http.Request, conn *websocket.Conn) {
		conn.ReadMessage() // subscribe command
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server restart"))
		conn.ReadMessage()
	})

	session := New(DefaultConfig(url), testSigner(t), HandlerFunc(func(ctx context.Context, data []byte) error {
		return nil
	}), nil)

	err := session.Run(context.Background())
	var closeStatus *CloseStatus
	if !errors.As(err, &closeStatus) {
		t.Fatalf("Run returned %v, want *CloseStatus", err)
	}
	if closeStatus.Code != websocket.CloseGoingAway {
		t.Errorf("close code = %d, want %d", closeStatus.Code, websocket.CloseGoingAway)
	}
	if session.State() != StateClosed {
		t.Errorf("state = %s, want closed", session.State())
	}
}

func TestRun_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	session := New(DefaultConfig(url), testSigner(t), HandlerFunc(func(ctx context.Context, data []byte) error {
		return nil
	}), nil)

	err := session.Run(context.Background())
	if err == nil {
		t.Fatal("expected dial error")
	}
	var closeStatus *CloseStatus
	if errors.As(err, &closeStatus) {
		t.Error("dial failure must not be reported as a clean close")
	}
	if session.State() != StateErrored {
		t.Errorf("state = %s, want errored", session.State())
	}
}

func TestRun_HandlerErrorTerminatesSession(t *testing.T) {
	url := wsServer(t, func(r *http.Request, conn *websocket.Conn) {
		conn.ReadMessage() // subscribe command
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ticker"}`))
		conn.ReadMessage() // wait for the client to drop
	})

	boom := errors.New("boom")
	session := New(DefaultConfig(url), testSigner(t), HandlerFunc(func(ctx context.Context, data []byte) error {
		return boom
	}), nil)

	err := session.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Run returned %v, want wrapped handler error", err)
	}
	if session.State() != StateErrored {
		t.Errorf("state = %s, want errored", session.State())
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:       "idle",
		StateConnecting: "connecting",
		StateOpen:       "open",
		StateClosed:     "closed",
		StateErrored:    "errored",
		State(99):       "unknown",
	}
	for st, want := range states {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", st, got, want)
		}
	}
}
