package handler

import (
	"log"
	"net/http"

	"coffeechat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten for production!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and attaches it to the room's
// event stream. Only the room's two participants may subscribe.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	sessionID, ok := h.sessionFromRequest(c)
	if !ok {
		return
	}

	roomID := c.Param("room_id")
	room, err := h.Registry.Get(roomID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if !room.HasParticipant(sessionID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not a participant of this room"})
		return
	}

	senderName := ""
	if user, err := h.Storage.ResolveIdentity(sessionID); err == nil {
		senderName = user.Name
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := &chathub.WebSocketClient{
		SessionID:  sessionID,
		SenderName: senderName,
		RoomID:     roomID,
		Conn:       conn,
		Hub:        h.Channels,
		Registry:   h.Registry,
		ReadLimit:  h.Cfg.MaxEventBytes,
	}

	if err := client.Run(); err != nil {
		log.Printf("WARNING: Rejecting subscription of %s to room %s: %v", sessionID, roomID, err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "room unavailable"))
		conn.Close()
	}
}
