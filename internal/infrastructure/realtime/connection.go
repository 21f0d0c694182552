package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	queueLength = 128
)

// Close codes in the private 4000-4999 range.
const (
	CloseSessionReplaced = 4001
	CloseSlowConsumer    = 4008
)

var (
	ErrConnectionClosed = errors.New("realtime: connection closed")
	ErrSlowConsumer     = errors.New("realtime: outbound queue full")
)

// socket is the subset of *websocket.Conn a Connection writes to.
type socket interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Connection is one subscriber socket. Frames are queued by Send and written by a
// single goroutine; a subscriber whose queue fills up is disconnected rather than
// slowing down the publisher. ID is the socket id channel grants are signed for.
type Connection struct {
	ID     string
	UserID string
	Email  string

	ws        socket
	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	written   atomic.Int64
}

// NewConnection wraps an upgraded websocket for the given user.
func NewConnection(userID, email string, ws *websocket.Conn) *Connection {
	return newConnection(userID, email, ws)
}

func newConnection(userID, email string, ws socket) *Connection {
	return &Connection{
		ID:       uuid.NewString(),
		UserID:   userID,
		Email:    email,
		ws:       ws,
		outbound: make(chan []byte, queueLength),
		done:     make(chan struct{}),
	}
}

// Start launches the writer. Router.Attach calls it.
func (c *Connection) Start() {
	go c.pump()
}

// Send queues frame without blocking.
func (c *Connection) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.outbound <- frame:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.Close(CloseSlowConsumer, "slow consumer")
		return ErrSlowConsumer
	}
}

// Written reports how many frames reached the socket.
func (c *Connection) Written() int64 { return c.written.Load() }

// Done is closed once the connection has been shut down.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close sends a close frame with code and reason and releases the socket. Safe to
// call more than once.
func (c *Connection) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(writeWait)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

func (c *Connection) pump() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		var (
			kind  = websocket.TextMessage
			frame []byte
		)
		select {
		case <-c.done:
			return
		case frame = <-c.outbound:
		case <-ping.C:
			kind = websocket.PingMessage
		}

		if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			c.Close(websocket.CloseAbnormalClosure, "write deadline")
			return
		}
		if err := c.ws.WriteMessage(kind, frame); err != nil {
			c.Close(websocket.CloseAbnormalClosure, "write failed")
			return
		}
		if kind == websocket.TextMessage {
			c.written.Add(1)
		}
	}
}
