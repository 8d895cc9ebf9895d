// Package session bridges websocket connections onto room buses. Each
// connection runs two goroutines: readPump decodes client frames and
// publishes them inbound, writePump drains a bus receiver and forwards the
// frames addressed to this client.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nbittich/hearts/internal/v1/bus"
	"github.com/nbittich/hearts/internal/v1/logging"
	"github.com/nbittich/hearts/internal/v1/metrics"
	"github.com/nbittich/hearts/internal/v1/room"
	"github.com/nbittich/hearts/internal/v1/users"
)

const writeWait = 10 * time.Second

// wsConnection is the subset of *websocket.Conn the bridge needs. Tests
// substitute mock connections.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// publisher is the subset of *room.Room the bridge publishes through.
type publisher interface {
	Publish(ctx context.Context, msg room.Message) error
}

// Client is one authenticated websocket connection bound to one room.
type Client struct {
	conn   wsConnection
	rcv    *bus.Receiver[room.Message]
	room   publisher
	userID users.ID
	cancel context.CancelFunc
}

func newClient(conn wsConnection, rcv *bus.Receiver[room.Message], r publisher, userID users.ID) *Client {
	return &Client{conn: conn, rcv: rcv, room: r, userID: userID}
}

// wants reports whether a bus message is addressed to this client: its own
// unicasts and system broadcasts. Relayed client messages are never echoed.
func (c *Client) wants(msg room.Message) bool {
	if msg.ToUserID != nil {
		return *msg.ToUserID == c.userID
	}
	return msg.FromUserID == nil
}

// readPump decodes inbound text frames and publishes them on the room bus.
// The authenticated user id always overwrites whatever the frame claimed.
// A malformed frame terminates the connection.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.cancel()
		c.rcv.Close()
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg room.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Warn(ctx, "closing connection on malformed frame",
				zap.String("user", c.userID.String()),
				zap.Error(err))
			return
		}
		id := c.userID
		msg.FromUserID = &id
		msg.ToUserID = nil

		if err := c.room.Publish(ctx, msg); err != nil {
			logging.Warn(ctx, "inbound publish failed",
				zap.String("user", c.userID.String()),
				zap.Error(err))
			return
		}
	}
}

// writePump drains the bus receiver and forwards matching messages as text
// frames. A stalled client eventually misses its write deadline, closing
// the connection and with it the receiver, so the bus never wedges on a
// dead peer.
func (c *Client) writePump(ctx context.Context) {
	defer c.conn.Close()

	for {
		msg, err := c.rcv.Recv(ctx)
		if err != nil {
			// bus closed or connection torn down
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
		if !c.wants(msg) {
			continue
		}

		data, err := json.Marshal(msg)
		if err != nil {
			logging.Error(ctx, "marshal outbound frame failed",
				zap.String("kind", string(msg.Type)),
				zap.Error(err))
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
