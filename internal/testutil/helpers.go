// Package testutil provides helpers shared by the relay's package tests.
//
// It contains a recording broadcast peer for coordinator tests and
// WebSocket dial/read/write helpers for the server integration tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/broadcast"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/session"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Recorder is a broadcast.Peer that keeps every event it receives.
type Recorder struct {
	mu      sync.Mutex
	events  []broadcast.Event
	sendErr error
}

// Send records e, or returns the configured failure.
func (r *Recorder) Send(e broadcast.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.events = append(r.events, e)
	return nil
}

// FailWith makes subsequent sends return err. A nil err restores delivery.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.sendErr = err
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []broadcast.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Event(nil), r.events...)
}

// Named returns the recorded events called name.
func (r *Recorder) Named(name string) []broadcast.Event {
	var out []broadcast.Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Names returns the names of the recorded events in order.
func (r *Recorder) Names() []string {
	events := r.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// WebSocketURL converts an httptest server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that is closed when the test ends.
func CreateTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// ConnectWebSocket dials url with the given Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// MustConnect dials the relay and consumes the welcome frame, returning the
// connection and its server-assigned id.
func MustConnect(t *testing.T, url, origin string) (*websocket.Conn, string) {
	t.Helper()

	conn, _, err := ConnectWebSocket(url, origin)
	require.NoError(t, err, "dial %s", url)
	t.Cleanup(func() { _ = conn.Close() })

	frame := ReadFrame(t, conn, 2*time.Second)
	require.Equal(t, broadcast.EventWelcome, frame.Event)

	var welcome protocol.Welcome
	require.NoError(t, json.Unmarshal(frame.Payload, &welcome))
	require.NotEmpty(t, welcome.ConnectionID)
	return conn, welcome.ConnectionID
}

// SendIntent writes an intent frame.
func SendIntent(t *testing.T, conn *websocket.Conn, in session.Intent) {
	t.Helper()
	data, err := protocol.EncodeIntent(in)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// ReadFrame reads one outbound frame.
func ReadFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) protocol.Outbound {
	t.Helper()
	frame, err := TryReadFrame(conn, timeout)
	require.NoError(t, err)
	return frame
}

// TryReadFrame is ReadFrame without failing the test. A timed out read
// leaves the connection unusable for further reads.
func TryReadFrame(conn *websocket.Conn, timeout time.Duration) (protocol.Outbound, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return protocol.Outbound{}, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.Outbound{}, err
	}
	return protocol.DecodeEvent(data)
}

// ExpectEvent reads frames until one named name arrives and returns it.
func ExpectEvent(t *testing.T, conn *websocket.Conn, name string, timeout time.Duration) protocol.Outbound {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		frame, err := TryReadFrame(conn, time.Until(deadline))
		require.NoError(t, err, "waiting for %s", name)
		if frame.Event == name {
			return frame
		}
	}
	t.Fatalf("Did not receive %s within %s", name, timeout)
	return protocol.Outbound{}
}

// ExpectNoEvent fails if any frame called name arrives within timeout. It
// ends with a timed out read, so it must be the last read on conn.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, name string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		frame, err := TryReadFrame(conn, time.Until(deadline))
		if err != nil {
			return
		}
		if frame.Event == name {
			t.Fatalf("Unexpected %s event: %s", name, string(frame.Payload))
		}
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
