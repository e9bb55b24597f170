package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Transport timing and size limits.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// connection is one live websocket session. It exists from transport connect
// to transport close and is never persisted.
//
// Outbound frames pass through a bounded queue drained by a single writer
// goroutine, so neither the read loop nor the bus listener ever blocks on a
// slow client. A client that lets the queue overflow is disconnected; it can
// reconnect and re-derive state through the read path.
type connection struct {
	id     uuid.UUID
	ws     *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	mu       sync.Mutex
	owner    *uuid.UUID
	channels map[string]struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(ws *websocket.Conn, queueSize int, log *slog.Logger) *connection {
	id := uuid.New()
	return &connection{
		id:       id,
		ws:       ws,
		send:     make(chan []byte, queueSize),
		channels: make(map[string]struct{}),
		closed:   make(chan struct{}),
		logger:   log.With(slog.String("connection_id", id.String())),
	}
}

// authenticated reports whether the connection has a bound owner.
func (c *connection) authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner != nil
}

// bindOwner transitions the connection to the authenticated state.
// Returns false when an owner is already bound.
func (c *connection) bindOwner(ownerID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner != nil {
		return false
	}
	c.owner = &ownerID
	return true
}

// ownerID returns the bound owner, or uuid.Nil before authentication.
func (c *connection) ownerID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == nil {
		return uuid.Nil
	}
	return *c.owner
}

func (c *connection) addChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = struct{}{}
}

func (c *connection) removeChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

func (c *connection) subscribedTo(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[channel]
	return ok
}

// enqueue places a frame on the outbound queue. On overflow the connection
// is torn down rather than blocking the caller.
func (c *connection) enqueue(frame []byte) {
	select {
	case <-c.closed:
	case c.send <- frame:
	default:
		c.logger.Warn("outbound queue full, disconnecting slow client")
		c.close()
	}
}

// close tears the transport down exactly once. The write pump exits via the
// closed signal; the read pump exits via the transport error.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if err := c.ws.Close(); err != nil {
			c.logger.Debug("transport close", slog.String("error", err.Error()))
		}
	})
}

// writePump is the single writer for the transport. It drains the outbound
// queue and keeps the connection alive with periodic pings.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
