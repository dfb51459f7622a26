// ABOUTME: WebSocket connection wrapper implementing the registry Link interface
// ABOUTME: Runs read/write pumps with ping keepalive and non-blocking delivery

package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/innovexlabs/quickfix-gateway/internal/registry"
)

const (
	// writeWait is the deadline for a single outbound frame.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames; clients only send small
	// keepalive and acknowledgement messages.
	maxMessageSize = 4096

	// sendBufferSize is the outbound event queue per connection. When it
	// fills, Deliver drops events rather than blocking the publisher.
	sendBufferSize = 64
)

// envelope is the wire format for outbound events.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn wraps a websocket connection and implements registry.Link.
type Conn struct {
	id     string
	ws     *websocket.Conn
	send   chan envelope
	done   chan struct{}
	logger *slog.Logger

	closeOnce   sync.Once
	closeReason string
}

func newConn(id string, ws *websocket.Conn, logger *slog.Logger) *Conn {
	return &Conn{
		id:     id,
		ws:     ws,
		send:   make(chan envelope, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Deliver queues an event for the write pump. It never blocks: a full queue
// or a closed connection returns false and the event is dropped.
func (c *Conn) Deliver(event string, payload any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- envelope{Event: event, Data: payload}:
		return true
	default:
		return false
	}
}

// Close shuts the connection down at most once. The write pump sends a close
// frame carrying the reason before tearing down the socket.
func (c *Conn) Close(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason = reason
		close(c.done)
	})
}

// readPump consumes inbound frames until the peer disconnects. Pongs and any
// client message count as activity. The registry entry is removed on exit.
func (c *Conn) readPump(reg *registry.Registry) {
	defer func() {
		reg.Remove(c.id)
		c.Close("connection_closed")
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		reg.Touch(c.id)
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", "connection_id", c.id, "error", err)
			}
			return
		}
		reg.Touch(c.id)
	}
}

// writePump drains the send queue and emits periodic pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case env := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				c.Close("write_failed")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close("ping_failed")
				return
			}

		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.closeReason))
			return
		}
	}
}
