package realtime

import (
	"time"

	"github.com/gorilla/websocket"

	"auth_gateway/internal/models"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Client is one authenticated connection. Its identity is fixed at handshake
// and trusted for the connection's lifetime.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	identity     models.Identity
	quit         chan struct{} // closed by the hub, exactly once
	pingInterval time.Duration
}

// readPump drains inbound frames so control messages are processed.
// Event handling for inbound messages lives outside this package.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	pongWait := 2 * c.pingInterval

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.quit:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session ended"),
			)
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
