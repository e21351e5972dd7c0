package models

import "time"

// ChatRoom represents a 1-on-1 chat session between two anonymous sessions.
// A room always has exactly two distinct participants and lives until either
// one disconnects or leaves.
type ChatRoom struct {
	// RoomID is the short opaque token identifying the room.
	RoomID string `gorm:"primaryKey"`
	// User1ID is the session key of the first participant.
	User1ID string
	// User2ID is the session key of the second participant.
	User2ID string
	// IsActive indicates whether the room is currently live.
	IsActive bool
	// StartedAt is the timestamp when the room was created.
	StartedAt time.Time
	// EndedAt is the timestamp when the room was closed.
	EndedAt time.Time
}

// HasParticipant reports whether the given session key occupies one of the
// room's two slots.
func (r *ChatRoom) HasParticipant(sessionKey string) bool {
	return sessionKey == r.User1ID || sessionKey == r.User2ID
}

// PartnerOf returns the other participant's session key, or "" when the
// given session is not in the room.
func (r *ChatRoom) PartnerOf(sessionKey string) string {
	switch sessionKey {
	case r.User1ID:
		return r.User2ID
	case r.User2ID:
		return r.User1ID
	}
	return ""
}
