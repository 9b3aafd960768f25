package ws

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client is one live websocket connection for an authenticated user. A user
// may hold several of these at once.
type Client struct {
	ID     string
	UserID string
	Email  string

	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	closed  int32
}

func NewClient(conn *websocket.Conn, userID, email string, rps int) *Client {
	if rps <= 0 {
		rps = 20
	}
	return &Client{
		ID:      uuid.NewString(),
		UserID:  userID,
		Email:   email,
		conn:    conn,
		send:    make(chan []byte, 256),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Allow applies the per-connection inbound rate limit.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

// Enqueue hands a frame to the write pump. Full buffer means a slow
// consumer; the frame is dropped rather than blocking the broadcaster.
func (c *Client) Enqueue(b []byte) bool {
	if atomic.LoadInt32(&c.closed) == 1 {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// WritePump drains the send channel to the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

// Close is safe to call more than once.
func (c *Client) Close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		close(c.send)
	}
}
