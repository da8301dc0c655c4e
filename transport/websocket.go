// Package transport is a reference Transport collaborator: it carries
// already-encoded wire.Packet byte strings over WebSocket binary
// frames, which preserve message boundaries the way this core's
// Transport contract requires (no assumed MTU beyond the 2048/128KiB
// caps wire/ already enforces). It is demo-only scaffolding, never
// imported by crypto/, session/, or channel/.
//
// Grounded on the teacher's transport/cdn_friendly.go, the one file in
// the teacher's transport package that actually uses
// github.com/gorilla/websocket, rewritten without the TLS-fingerprint
// mimicry that file exists for.
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("transport: connection closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn carries whole-packet byte strings in both directions. Send
// serialises concurrent writers with an internal mutex (gorilla/websocket
// forbids concurrent writes on one connection); Receive has no such
// guard and must be called from a single goroutine.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// DialWebSocket connects to a WebSocket endpoint and returns a Conn
// ready to carry encoded packets.
func DialWebSocket(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

// Send writes one complete packet as a single WebSocket binary frame.
func (c *Conn) Send(packet []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, packet)
}

// Receive reads one complete binary frame, handed to wire.DecodePacket
// unmodified by the caller.
func (c *Conn) Receive() ([]byte, error) {
	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if kind != websocket.BinaryMessage {
		return nil, errors.New("transport: expected binary frame")
	}
	return data, nil
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// Listener accepts incoming WebSocket connections on an HTTP server,
// handing upgraded connections to Accept in arrival order through a
// 16-slot queue; a connection that arrives while the queue is full is
// closed.
type Listener struct {
	server *http.Server
	ln     net.Listener
	accept chan *Conn

	mu     sync.Mutex
	closed bool
}

// ListenWebSocket starts an HTTP server on addr whose single handler
// upgrades every request to a WebSocket and forwards the resulting Conn
// to Accept.
func ListenWebSocket(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		ln:     ln,
		accept: make(chan *Conn, 16),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handle)
	l.server = &http.Server{Handler: mux}

	go func() {
		_ = l.server.Serve(ln)
	}()

	return l, nil
}

func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &Conn{ws: ws}

	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		_ = conn.Close()
		return
	}

	select {
	case l.accept <- conn:
	default:
		_ = conn.Close()
	}
}

// Accept blocks until the next upgraded connection arrives, or returns
// ErrClosed once the listener has been closed.
func (l *Listener) Accept() (*Conn, error) {
	conn, ok := <-l.accept
	if !ok {
		return nil, ErrClosed
	}
	return conn, nil
}

func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.accept)
	return l.server.Close()
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
