package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 128
)

// ErrConnectionClosed is returned by Send after Close.
var ErrConnectionClosed = errors.New("realtime: connection closed")

// Connection wraps a websocket and serializes outbound writes through a
// buffered channel. Key identifies the session owner (an identity key).
// Safe for concurrent use.
type Connection struct {
	ID  string
	Key string

	ws    *websocket.Conn
	send  chan []byte
	mu    sync.RWMutex
	once  sync.Once
	close chan struct{}
}

// NewConnection constructs a Connection for the session owner key.
func NewConnection(key string, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:    uuid.NewString(),
		Key:   key,
		ws:    ws,
		send:  make(chan []byte, sendBuffer),
		close: make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.close
}

// Send enqueues payload for delivery. A client too slow to drain its buffer
// is disconnected.
func (c *Connection) Send(payload []byte) error {
	c.mu.RLock()
	select {
	case <-c.close:
		c.mu.RUnlock()
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		c.mu.RUnlock()
		return nil
	default:
		c.mu.RUnlock()
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("realtime: connection buffer exceeded")
	}
}

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		close(c.close)
		close(c.send)
		c.mu.Unlock()
		if c.ws == nil {
			return
		}
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
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

func (c *Connection) write(kind int, payload []byte) error {
	if c.ws == nil {
		return ErrConnectionClosed
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
