// Package server is the websocket transport: it upgrades connections,
// runs one read and one write goroutine per client, and maps protocol
// events onto the chat service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"parley/protocol"
	"parley/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Caps a single inbound frame. Generous enough for a 5 MB image
	// as base64 plus envelope overhead.
	maxMessageSize = 8 << 20
)

// Client is one live websocket connection. Its buffered send channel
// is the session's event sink: broadcasters enqueue without blocking,
// and a consumer too slow to drain its buffer is disconnected rather
// than allowed to stall a room.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan protocol.Event
	log  *slog.Logger
	svc  *services.ChatService
	sess *services.Session
}

func newClient(id string, conn *websocket.Conn, log *slog.Logger, svc *services.ChatService, sendBuffer int) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan protocol.Event, sendBuffer),
		log:  log,
		svc:  svc,
	}
}

// Consume implements contract.EventSink. It never blocks: when the
// buffer is full the event is dropped and an error reported so the
// router can log it. A closed session's channel keeps accepting writes
// until the write pump drains and exits, so late broadcasts for a
// disconnected session are harmless no-ops.
func (c *Client) Consume(_ context.Context, e protocol.Event) error {
	select {
	case c.send <- e:
		return nil
	default:
		return fmt.Errorf("send buffer full for connection %s", c.id)
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.svc.Disconnect(ctx, c.sess)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var event protocol.Event
		if err := c.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read error", "conn", c.id, "error", err)
			}
			return
		}
		c.dispatch(ctx, event)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply sends a response event to this client only.
func (c *Client) reply(ctx context.Context, eventType string, payload any) {
	event, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		c.log.Error("encoding reply", "type", eventType, "error", err)
		return
	}
	if err := c.Consume(ctx, event); err != nil {
		c.log.Debug("reply dropped", "conn", c.id, "error", err)
	}
}

// replyError surfaces a failure to the originating connection only,
// never as a broadcast.
func (c *Client) replyError(ctx context.Context, err error) {
	c.reply(ctx, protocol.TypeError, protocol.ErrorPayload{Message: err.Error()})
}
