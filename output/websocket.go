package output

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"
)

// DefaultWriteTimeout bounds a single frame write.
const DefaultWriteTimeout = 10 * time.Second

// FrameWriter is the write side of a websocket connection. *websocket.Conn
// satisfies it.
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// WebSocketConn is a listener connection. The socket allows one writer at
// a time, so SendText holds mu for the whole write.
type WebSocketConn struct {
	mu           sync.Mutex
	ws           FrameWriter
	writeTimeout time.Duration
	closed       bool
}

func NewWebSocketConn(ws FrameWriter, writeTimeout time.Duration) (*WebSocketConn, error) {
	if ws == nil {
		return nil, errors.New("websocket connection is required")
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WebSocketConn{ws: ws, writeTimeout: writeTimeout}, nil
}

// SendText writes payload as one text frame.
func (o *WebSocketConn) SendText(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.New("connection closed")
	}
	if err := o.ws.SetWriteDeadline(time.Now().Add(o.writeTimeout)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if err := o.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrap(err, "write text frame")
	}
	return nil
}

// Close marks the connection closed and closes the socket. Later sends fail.
func (o *WebSocketConn) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	return o.ws.Close()
}
