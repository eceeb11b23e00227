package pvp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 25 * time.Second
	maxFrameSize   = 4096
	sendBufferSize = 64
	dialTimeout    = 10 * time.Second
)

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrSendBufferFull  = errors.New("send buffer full")
)

// ReadyState mirrors the lifecycle of the underlying socket.
type ReadyState string

const (
	ReadyConnecting ReadyState = "connecting"
	ReadyOpen       ReadyState = "open"
	ReadyClosed     ReadyState = "closed"
)

// Sink receives everything a transport reads, in order, from one goroutine.
type Sink interface {
	Frame(raw []byte)
	// Closed is called once. A nil error means the peer closed cleanly.
	Closed(err error)
}

// Transport is one established bidirectional channel.
type Transport interface {
	// Run starts delivering inbound frames to sink. It does not block.
	Run(sink Sink)
	// Send queues a frame without blocking.
	Send(frame []byte) error
	Close() error
}

// Dialer opens the channel addressed by a gameplay session id.
type Dialer interface {
	Dial(ctx context.Context, sessionID string) (Transport, error)
}

// Connection is the session's view of its single transport.
type Connection struct {
	id        uint64
	state     ReadyState
	lastGood  bool
	transport Transport
}

func (c *Connection) State() ReadyState { return c.state }

// LastGood reports whether the transport was ever open.
func (c *Connection) LastGood() bool { return c.lastGood }

// WSDialer dials the pairing server over a websocket.
type WSDialer struct {
	BaseURL string
	Dialer  *websocket.Dialer
}

func NewWSDialer(baseURL string) *WSDialer {
	return &WSDialer{BaseURL: baseURL, Dialer: websocket.DefaultDialer}
}

// URL returns the endpoint for sessionID.
func (d *WSDialer) URL(sessionID string) string {
	return strings.TrimRight(d.BaseURL, "/") + "/ws/pvp/match/" + url.PathEscape(sessionID)
}

func (d *WSDialer) Dial(ctx context.Context, sessionID string) (Transport, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, d.URL(sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("dial pvp server: %w", err)
	}
	return newWSTransport(conn), nil
}

type wsTransport struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (t *wsTransport) Run(sink Sink) {
	go t.writePump()
	go t.readPump(sink)
}

func (t *wsTransport) Send(frame []byte) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}
	select {
	case t.send <- frame:
		return nil
	case <-t.done:
		return ErrTransportClosed
	default:
		return ErrSendBufferFull
	}
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second),
		)
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) readPump(sink Sink) {
	t.conn.SetReadLimit(maxFrameSize)
	for {
		_, msg, err := t.conn.ReadMessage()
		if err != nil {
			if isCleanClose(err) {
				err = nil
			}
			sink.Closed(err)
			_ = t.Close()
			return
		}
		sink.Frame(msg)
	}
}

func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = t.Close()
				return
			}
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = t.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}

// isCleanClose reports whether the server ended the connection on purpose.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
