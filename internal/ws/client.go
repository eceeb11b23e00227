package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 30 * time.Second
	pingPeriod  = 25 * time.Second
	sendTimeout = 2 * time.Second
	maxFrame    = 4096
)

// Client is one websocket connection bound to a gameplay session.
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte

	hub       *Hub
	log       *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(sessionID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		hub:       hub,
		log:       hub.log.With("session_id", sessionID),
		done:      make(chan struct{}),
	}
}

// Run registers the client and blocks until the connection drops.
func (c *Client) Run() {
	go c.writePump()
	c.hub.Register(c)
	c.readPump()
}

// Done is closed once the client is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close drops the connection; the read pump then unregisters the client.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SendJSON queues v for the write pump. It gives up when the client is gone
// or its buffer stays full for sendTimeout.
func (c *Client) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("marshal outbound frame", "error", err)
		return false
	}

	select {
	case c.Send <- data:
		return true
	case <-c.done:
		return false
	default:
	}

	t := time.NewTimer(sendTimeout)
	defer t.Stop()
	select {
	case c.Send <- data:
		return true
	case <-c.done:
		return false
	case <-t.C:
		c.log.Warn("send timeout, dropping frame", "bytes", len(data))
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		c.hub.Unregister(c)
	}()

	c.Conn.SetReadLimit(maxFrame)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read error", "error", err)
			}
			return
		}
		c.hub.HandleMessage(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write error", "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.flush()
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still buffered so a final frame is not lost on close.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
