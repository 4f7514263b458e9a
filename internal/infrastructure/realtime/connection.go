// Package realtime delivers domain events to live websocket sessions, locally or across instances.
package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	domainrt "workify/services/conversation-api/internal/domain/realtime"
)

// Close codes sent by the server.
const (
	CloseTokenExpired = 4001
	CloseSlowConsumer = 4008
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrBufferExceeded   = errors.New("connection buffer exceeded")
)

// Session is one live client session as the registry sees it.
type Session interface {
	ID() string
	Destination() domainrt.Destination
	Send(payload []byte) error
	Close(code int, reason string)
}

// ConnectionOptions tunes the write side of a connection.
type ConnectionOptions struct {
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

func (o ConnectionOptions) withDefaults() ConnectionOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 128
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// Connection wraps a websocket and serializes outbound writes through a buffered channel.
// Only the write loop writes data frames; Close may be called from any goroutine.
type Connection struct {
	id          string
	destination domainrt.Destination

	ws   *websocket.Conn
	opts ConnectionOptions
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewConnection constructs a Connection for the given destination.
func NewConnection(destination domainrt.Destination, ws *websocket.Conn, opts ConnectionOptions) *Connection {
	opts = opts.withDefaults()
	return &Connection{
		id:          uuid.NewString(),
		destination: destination,
		ws:          ws,
		opts:        opts,
		send:        make(chan []byte, opts.SendBuffer),
		done:        make(chan struct{}),
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Destination() domainrt.Destination { return c.destination }

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery. A full buffer closes the connection.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		// The close frame may wait behind a stuck write, so it must not hold up the publisher.
		c.shutdown(CloseSlowConsumer, "send buffer full", true)
		return ErrBufferExceeded
	}
}

// Close sends a close frame and tears the socket down. Later calls are no-ops.
func (c *Connection) Close(code int, reason string) {
	c.shutdown(code, reason, false)
}

// shutdown marks the connection done at once. With async set the close frame and socket
// teardown happen on their own goroutine.
func (c *Connection) shutdown(code int, reason string, async bool) {
	c.once.Do(func() {
		close(c.done)
		teardown := func() {
			deadline := time.Now().Add(c.opts.WriteTimeout)
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
			_ = c.ws.Close()
		}
		if async {
			go teardown()
			return
		}
		teardown()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
