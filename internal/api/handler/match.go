package handler

import (
	"errors"
	"log"
	"net/http"

	"coffeechat/backend/internal/chathub"
	"coffeechat/backend/internal/models"
	"coffeechat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

const leaveReason = "The room has been closed. Returning to the waiting room..."

// FindMatch is the matchmaking poll. The client calls it repeatedly: null
// while still waiting, the room id once paired, and the same room id on
// every further poll until the room is destroyed.
func (h *Handler) FindMatch(c *gin.Context) {
	sessionID, ok := h.sessionFromRequest(c)
	if !ok {
		return
	}

	var req models.MatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	roomID, err := h.Matcher.FindMatch(sessionID, req.UseTempInterests, req.TempInterestsRaw)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown session"})
		return
	case errors.Is(err, chathub.ErrUserBanned):
		c.JSON(http.StatusForbidden, gin.H{"error": "Matchmaking unavailable"})
		return
	case err != nil:
		// Internal matching hiccups are a benign "keep polling" to the
		// caller, never a transport failure.
		log.Printf("WARNING: Matchmaking poll failed for %s: %v", sessionID, err)
		c.JSON(http.StatusOK, gin.H{"room_id": nil})
		return
	}

	if roomID == "" {
		c.JSON(http.StatusOK, gin.H{"room_id": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}

// Leave cancels a pending search and tears down the caller's active room if
// one exists. Always succeeds; leaving with neither is a no-op.
func (h *Handler) Leave(c *gin.Context) {
	sessionID, ok := h.sessionFromRequest(c)
	if !ok {
		return
	}

	h.Matcher.Leave(sessionID)

	if roomID, assigned := h.Presence.RoomFor(sessionID); assigned {
		// Same ordering as a disconnect: notify, destroy, then the channel
		// drains out as the subscribers detach.
		h.Channels.CloseRoom(roomID, leaveReason)
		h.Registry.Destroy(roomID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
