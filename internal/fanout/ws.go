package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var ErrConnClosed = errors.New("connection closed")

const defaultWriteTimeout = 10 * time.Second

// WSConn adapts a gorilla websocket to Conn. Writes are serialized because
// the underlying connection allows a single concurrent writer.
type WSConn struct {
	ws           *websocket.Conn
	writeMu      sync.Mutex
	closed       atomic.Bool
	closeOnce    sync.Once
	closeErr     error
	writeTimeout time.Duration
}

func NewWSConn(ws *websocket.Conn, writeTimeout time.Duration) *WSConn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &WSConn{ws: ws, writeTimeout: writeTimeout}
}

// Send writes msg as one text frame. The write gives up at the earlier of
// the context deadline and the write timeout.
func (c *WSConn) Send(ctx context.Context, msg []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		c.closed.Store(true)
		return err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		c.closed.Store(true)
		return err
	}
	return nil
}

// Ping sends a ping control frame.
func (c *WSConn) Ping() error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
	if err != nil {
		c.closed.Store(true)
	}
	return err
}

func (c *WSConn) Closed() bool {
	return c.closed.Load()
}

// Close sends a normal-closure frame and closes the socket. Only the first
// call touches the socket.
func (c *WSConn) Close() error {
	c.closed.Store(true)
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closed by server")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// Underlying exposes the websocket for the read loop.
func (c *WSConn) Underlying() *websocket.Conn {
	return c.ws
}
