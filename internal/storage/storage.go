package storage

import (
	"context"
	"errors"
	"log"

	"coffeechat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when a session key resolves to no profile.
	ErrUserNotFound = errors.New("user not found")
	// ErrRoomRecordNotFound is returned when a room id has no persisted row.
	ErrRoomRecordNotFound = errors.New("chat room record not found")
)

// Storage is the narrow persistence surface the matchmaking core consumes.
type Storage interface {
	SaveUser(user *models.User) error
	// ResolveIdentity maps an opaque session key to the profile behind it.
	ResolveIdentity(sessionKey string) (*models.User, error)

	SaveRoom(room *models.ChatRoom) error
	CloseRoom(roomID string) error
	GetRoomByID(roomID string) (*models.ChatRoom, error)
	GetActiveRoomIDForUser(sessionKey string) (string, error)

	IsUserBanned(userID string) (bool, error)

	// Search-queue mirror, kept in Redis so the waiting pool is observable
	// and recoverable across restarts.
	AddUserToSearchQueue(sessionKey string) error
	RemoveUserFromSearchQueue(sessionKey string) error
	GetSearchingUsers() ([]string, error)

	// MirrorRoomEvent publishes a relayed event to the room's Redis channel
	// for any out-of-process consumer.
	MirrorRoomEvent(roomID string, payload []byte) error
}

// Service implements Storage on top of PostgreSQL (gorm) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// ResolveIdentity looks a profile up by its session key.
func (s *Service) ResolveIdentity(sessionKey string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("session_key = ?", sessionKey).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to resolve identity for session %s: %v", sessionKey, err)
		return nil, err
	}
	return &user, nil
}

func (s *Service) SaveRoom(room *models.ChatRoom) error {
	return s.DB.Save(room).Error
}

// CloseRoom marks the room inactive. The record is kept for moderation
// history rather than deleted.
func (s *Service) CloseRoom(roomID string) error {
	return s.DB.Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  gorm.Expr("NOW()"),
		}).Error
}

func (s *Service) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomRecordNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get room %s: %v", roomID, err)
		return nil, err
	}
	return &room, nil
}

// GetActiveRoomIDForUser finds the active room the session participates in,
// if any. Returns "" without an error when there is none.
func (s *Service) GetActiveRoomIDForUser(sessionKey string) (string, error) {
	var room models.ChatRoom
	err := s.DB.Where("is_active = ?", true).
		Where("user1_id = ? OR user2_id = ?", sessionKey, sessionKey).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to find active room for session %s: %v", sessionKey, err)
		return "", err
	}
	return room.RoomID, nil
}

// IsUserBanned checks the ban flag in Redis.
func (s *Service) IsUserBanned(userID string) (bool, error) {
	key := "ban:" + userID
	status, err := s.Redis.Get(s.Ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// AddUserToSearchQueue mirrors a waiting-pool entry into Redis.
func (s *Service) AddUserToSearchQueue(sessionKey string) error {
	return s.Redis.SAdd(s.Ctx, "search_queue", sessionKey).Err()
}

// RemoveUserFromSearchQueue removes the waiting-pool mirror entry.
func (s *Service) RemoveUserFromSearchQueue(sessionKey string) error {
	return s.Redis.SRem(s.Ctx, "search_queue", sessionKey).Err()
}

// GetSearchingUsers returns every session currently mirrored as searching.
func (s *Service) GetSearchingUsers() ([]string, error) {
	return s.Redis.SMembers(s.Ctx, "search_queue").Result()
}

// MirrorRoomEvent publishes the serialized event on the room's channel.
func (s *Service) MirrorRoomEvent(roomID string, payload []byte) error {
	return s.Redis.Publish(s.Ctx, "room:"+roomID, payload).Err()
}
