package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"coffeechat/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Room-closed notice sent to the remaining participant.
	partnerLeftReason = "Your partner left the chat. Returning to the waiting room..."
)

// WebSocketClient bridges one live WebSocket connection and its room
// channel: inbound frames are validated and published, outbound events are
// tagged for the receiver and written back.
type WebSocketClient struct {
	SessionID  string
	SenderName string
	RoomID     string
	Conn       *websocket.Conn
	Hub        *ChannelHub
	Registry   *RoomRegistry
	// ReadLimit bounds a single inbound frame; media arrives base64-encoded
	// inside it.
	ReadLimit int64

	sub  *Subscription
	once sync.Once
}

// Run subscribes to the room channel and starts the read and write pumps.
func (c *WebSocketClient) Run() error {
	sub, err := c.Hub.Subscribe(c.RoomID, c.SessionID)
	if err != nil {
		return err
	}
	c.sub = sub
	go c.writePump()
	go c.readPump()
	return nil
}

// Close runs the teardown sequence exactly once, in order: notify the room,
// destroy the registry record, drop the subscription, close the socket.
// The ordering guarantees the remaining participant sees room_closed before
// the room becomes unreachable, on error paths included.
func (c *WebSocketClient) Close() {
	c.once.Do(func() {
		c.Hub.Publish(c.RoomID, models.ChannelEvent{
			Type:     models.EventRoomClosed,
			SenderID: c.SessionID,
			Message:  partnerLeftReason,
		})
		c.Registry.Destroy(c.RoomID)
		c.Hub.Unsubscribe(c.sub)
		c.Conn.Close()
	})
}

// readPump reads inbound events off the WebSocket and publishes them to the
// room channel. A malformed event is dropped with a log line; the
// connection stays open.
func (c *WebSocketClient) readPump() {
	defer c.Close()

	c.Conn.SetReadLimit(c.ReadLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var ev models.ChannelEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			log.Printf("Error decoding JSON from client %s: %v", c.SessionID, err)
			continue
		}
		if err := ValidateInbound(&ev); err != nil {
			log.Printf("Dropping event from client %s: %v", c.SessionID, err)
			continue
		}

		// Identity is stamped server-side; whatever the client claimed is
		// discarded.
		ev.SenderID = c.SessionID
		ev.Self, ev.IsSelf = nil, nil
		if ev.Type == models.EventMedia {
			ev.SenderName = c.SenderName
		}

		c.Hub.Publish(c.RoomID, ev)
	}
}

// writePump forwards room events to the WebSocket and keeps the connection
// alive with pings. It exits after the terminal room_closed event or when
// the subscription is closed by the hub.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sub.Events:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.tagForReceiver(&ev)
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("Error encoding JSON for client %s: %v", c.SessionID, err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

			if ev.Type == models.EventRoomClosed {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// tagForReceiver computes the self-identification flags relative to this
// connection. Chat messages carry "self", media carries "is_self".
func (c *WebSocketClient) tagForReceiver(ev *models.ChannelEvent) {
	own := ev.SenderID == c.SessionID
	switch ev.Type {
	case models.EventMessage:
		ev.Self = &own
	case models.EventMedia:
		ev.IsSelf = &own
	}
}
