package irc

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// TransportEventType enumerates the events a transport reports.
type TransportEventType int

const (
	TransportConnected TransportEventType = iota
	TransportDisconnected
	TransportLine
	TransportError
)

// TransportEvent is one occurrence on the transport's event stream. Line is
// set for TransportLine (without the trailing terminator), Err for
// TransportError.
type TransportEvent struct {
	Type TransportEventType
	Line string
	Err  error
}

// Transport is the line-oriented connection the manager drives. Open must
// emit TransportConnected on success; loss of the connection emits
// TransportDisconnected exactly once per session.
type Transport interface {
	Open(ctx context.Context, endpoint string) error
	Send(line string) error
	Close() error
	Events() <-chan TransportEvent
}

// ErrTransportClosed is returned by Send when the transport has no active
// connection.
var ErrTransportClosed = errors.New("irc: transport closed")

// WebsocketTransport carries protocol lines over websocket text frames, the
// framing Twitch's irc-ws endpoint speaks. A single frame may carry several
// CRLF-terminated lines; each is reported as its own event.
//
// Each Open starts a session with its own done channel, so the transport
// can be closed and reopened (the server-directed reconnect path does this)
// without a stale session dropping the new one's events.
type WebsocketTransport struct {
	events chan TransportEvent

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

// NewWebsocketTransport creates an unopened websocket transport.
func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{events: make(chan TransportEvent, 64)}
}

// Events returns the transport's event stream.
func (t *WebsocketTransport) Events() <-chan TransportEvent {
	return t.events
}

// Open dials the endpoint and starts the session's read loop. Any previous
// session's connection and reader are discarded first.
func (t *WebsocketTransport) Open(ctx context.Context, endpoint string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
	}
	if t.done != nil {
		close(t.done)
	}
	done := make(chan struct{})
	t.conn, t.done = conn, done
	t.mu.Unlock()

	t.emit(done, TransportEvent{Type: TransportConnected})
	go t.readLoop(conn, done)
	return nil
}

// Send writes one line as a text frame, appending the CRLF terminator when
// missing.
func (t *WebsocketTransport) Send(line string) error {
	if !strings.HasSuffix(line, "\r\n") {
		line += "\r\n"
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrTransportClosed
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close drops the connection. The session's read loop notices the closed
// socket and reports TransportDisconnected on its way out, so a reconnect
// driven through Close still sees the disconnect event.
func (t *WebsocketTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (t *WebsocketTransport) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				t.emit(done, TransportEvent{Type: TransportError, Err: err})
			}
			t.emit(done, TransportEvent{Type: TransportDisconnected})
			return
		}
		for _, line := range strings.Split(string(data), "\r\n") {
			if line != "" {
				t.emit(done, TransportEvent{Type: TransportLine, Line: line})
			}
		}
	}
}

// emit delivers ev for the session owning done. Once a newer Open has
// superseded the session its leftover events are discarded.
func (t *WebsocketTransport) emit(done chan struct{}, ev TransportEvent) {
	select {
	case <-done:
		return
	default:
	}
	select {
	case t.events <- ev:
	case <-done:
	}
}
