package models

import (
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User represents an anonymous profile in the system. The matchmaking core
// only reads interests, location and the block list; everything else about a
// profile is managed by the surrounding application.
type User struct {
	ID string `gorm:"primaryKey" json:"id"` // anonymous UUID
	// SessionKey ties the profile to the opaque session identifier used by
	// matchmaking and the room event stream.
	SessionKey string `gorm:"uniqueIndex"`
	Name       string
	Location   string
	// Interests holds the normalized persistent interest tags.
	Interests pq.StringArray `gorm:"type:text[]"`
	// Blocked holds the IDs of users this user refuses to be paired with.
	Blocked pq.StringArray `gorm:"type:text[]"`
}

// BeforeCreate is a GORM hook that assigns a fresh UUID when the record has
// no ID yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// HasBlocked reports whether this user has put the given user ID on their
// block list.
func (u *User) HasBlocked(otherID string) bool {
	for _, id := range u.Blocked {
		if id == otherID {
			return true
		}
	}
	return false
}

// SameLocation compares locations case-insensitively. An empty side counts
// as compatible; the comparison only means something when both are set.
func (u *User) SameLocation(other *User) bool {
	if u.Location == "" || other.Location == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(u.Location), strings.TrimSpace(other.Location))
}
