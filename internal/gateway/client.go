package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/astrikos/mapstream/internal/events"
	"github.com/astrikos/mapstream/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// client pairs one websocket connection with its session. All writes to
// the socket go through the send channel and the writePump goroutine.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan outbound
	done   chan struct{}
	sess   *session.Session
	sub    *events.Subscriber
	logger *zap.Logger
}

// enqueue queues an outbound event for this connection. It never
// blocks: after teardown, or with a full buffer, the event is dropped.
func (c *client) enqueue(event string, data interface{}) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- outbound{Event: event, Data: data}:
	default:
		c.logger.Warn("send buffer full, dropping event",
			zap.String("session", c.id),
			zap.String("event", event))
	}
}

func (c *client) sendError(message string) {
	c.enqueue(events.EventError, map[string]string{"message": message})
}

func (c *client) fail(err error) {
	c.sendError(userMessage(err))
}

// decode unmarshals a payload, reporting an error event to the client
// on malformed input.
func (c *client) decode(raw json.RawMessage, into interface{}) bool {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		c.sendError("Invalid message")
		return false
	}
	return true
}

// forwardBroadcasts relays catalog-change events from the broker onto
// this connection. It exits when the broker subscription is closed.
func (c *client) forwardBroadcasts() {
	for event := range c.sub.Channel {
		c.enqueue(event.Name, event.Data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed",
					zap.String("session", c.id),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
