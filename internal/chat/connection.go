package chat

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Connection wraps a websocket with a write lock. Gorilla allows only one
// concurrent writer, and fan-out can hit the same connection from many
// sender loops.
type Connection struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{ws: ws}
}

// Send writes one text frame.
func (c *Connection) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Receive blocks until the next text frame or a disconnect.
func (c *Connection) Receive() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *Connection) Close() error {
	return c.ws.Close()
}

func (c *Connection) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
