package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single event write.
	writeWait = 10 * time.Second
	// readWait bounds the gap between client messages. Heartbeats arrive
	// far more often than this; a client silent for five minutes is gone.
	readWait = 5 * time.Minute
)

// Conn wraps a session-stream connection and serializes writes. The stream
// has two writers, the read-loop replies and the termination watcher, and
// gorilla/websocket permits only one writer on a connection at a time.
type Conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// NewConn wraps an upgraded connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// WriteTyped sends one typed event payload.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse.
func (c *Conn) WriteError(errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON decodes the next client message. The stream has a single reader,
// so reads are not serialized.
func (c *Conn) ReadJSON(v interface{}) error {
	c.ws.SetReadDeadline(time.Now().Add(readWait))
	return c.ws.ReadJSON(v)
}

// Close closes the underlying connection. Safe to call from either writer.
func (c *Conn) Close() error {
	return c.ws.Close()
}
