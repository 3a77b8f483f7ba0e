package websocket

import (
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// The client sends at least a ping or a frame well within this window.
	readWait = 2 * time.Minute
	// MaxMessageBytes bounds one client message, frames included.
	MaxMessageBytes = 4 << 20
)

// ErrEmptyFrame is returned for a frame action without image data.
var ErrEmptyFrame = errors.New("empty frame")

// Conn serializes writes; gorilla connections allow a single concurrent writer.
type Conn struct {
	*websocket.Conn
	mu sync.Mutex
}

// NewConn wraps an upgraded connection and applies the read limit.
func NewConn(c *websocket.Conn) *Conn {
	c.SetReadLimit(MaxMessageBytes)
	return &Conn{Conn: c}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(code, errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// ReadMessage reads and decodes one client message with a read deadline.
func (c *Conn) ReadMessage(msg *ClientMessage) error {
	c.SetReadDeadline(time.Now().Add(readWait))
	return c.ReadJSON(msg)
}

// DecodeFrame turns the base64 image of a frame action into raw bytes.
func DecodeFrame(image string) ([]byte, error) {
	if i := strings.Index(image, ","); i >= 0 && strings.HasPrefix(image, "data:") {
		image = image[i+1:]
	}
	if image == "" {
		return nil, ErrEmptyFrame
	}
	return base64.StdEncoding.DecodeString(image)
}
