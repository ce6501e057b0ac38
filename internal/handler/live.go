package handler

import (
	"sync"

	"github.com/gorilla/websocket"
)

// liveClient serializes writes to one websocket connection. Listener
// callbacks fire from independent goroutines, and gorilla/websocket
// permits only one concurrent writer.
type liveClient struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newLiveClient(conn *websocket.Conn) *liveClient {
	return &liveClient{conn: conn}
}

func (c *liveClient) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteJSON(v)
}

func (c *liveClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
