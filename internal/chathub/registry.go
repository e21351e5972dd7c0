package chathub

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"coffeechat/backend/internal/models"
	"coffeechat/backend/internal/storage"

	"github.com/google/uuid"
)

var (
	// ErrRoomNotFound means the room id resolves to no live room.
	ErrRoomNotFound = errors.New("chat room not found")
	// ErrParticipantConflict means one of the participants already holds an
	// active room; the caller lost a matching race and should retry.
	ErrParticipantConflict = errors.New("participant already holds an active room")
	// ErrIdenticalParticipants guards against pairing a session with itself.
	ErrIdenticalParticipants = errors.New("room participants must be distinct")
	// ErrRoomIDGeneration is returned when no unique room id could be
	// produced after several attempts.
	ErrRoomIDGeneration = errors.New("failed to generate unique room id")
)

const roomIDAttempts = 5

// RoomRegistry creates, looks up and tears down rooms. The in-memory map is
// the source of truth for liveness; storage keeps the closed record.
type RoomRegistry struct {
	mu       sync.RWMutex
	rooms    map[string]*models.ChatRoom
	presence *PresenceDirectory
	storage  storage.Storage
	// channels is notified on destroy so a room's relay can be reclaimed
	// once its last subscriber leaves. May be nil in tests.
	channels *ChannelHub
}

// NewRoomRegistry creates a registry bound to the presence directory and
// the persistence store.
func NewRoomRegistry(presence *PresenceDirectory, s storage.Storage) *RoomRegistry {
	return &RoomRegistry{
		rooms:    make(map[string]*models.ChatRoom),
		presence: presence,
		storage:  s,
	}
}

// SetChannelHub wires the relay hub whose channels follow room lifecycles.
// The hub gets a liveness probe back, so a subscribe racing a destroy is
// refused instead of attaching to a dead room.
func (r *RoomRegistry) SetChannelHub(hub *ChannelHub) {
	r.channels = hub
	hub.SetRoomCheck(func(roomID string) bool {
		_, err := r.Get(roomID)
		return err == nil
	})
}

// Create pairs two sessions into a fresh room: both presence assignments and
// the room record are established together, so a session can never end up in
// two rooms or in a room and the waiting pool at once.
func (r *RoomRegistry) Create(participantA, participantB string) (*models.ChatRoom, error) {
	if participantA == participantB {
		return nil, ErrIdenticalParticipants
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, err := r.newRoomID()
	if err != nil {
		return nil, err
	}

	if err := r.presence.Assign(participantA, roomID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParticipantConflict, participantA)
	}
	if err := r.presence.Assign(participantB, roomID); err != nil {
		r.presence.Unassign(participantA)
		return nil, fmt.Errorf("%w: %s", ErrParticipantConflict, participantB)
	}

	room := &models.ChatRoom{
		RoomID:    roomID,
		User1ID:   participantA,
		User2ID:   participantB,
		IsActive:  true,
		StartedAt: time.Now(),
	}

	if err := r.storage.SaveRoom(room); err != nil {
		r.presence.Unassign(participantA)
		r.presence.Unassign(participantB)
		return nil, fmt.Errorf("saving room %s: %w", roomID, err)
	}

	r.rooms[roomID] = room
	log.Printf("Room %s created for %s and %s", roomID, participantA, participantB)
	return room, nil
}

// newRoomID produces a short opaque token, regenerating on the (unlikely)
// collision with a live room. Caller holds r.mu.
func (r *RoomRegistry) newRoomID() (string, error) {
	for i := 0; i < roomIDAttempts; i++ {
		id := uuid.NewString()[:8]
		if _, taken := r.rooms[id]; taken {
			continue
		}
		// Closed rooms keep their row, so a historical id must not be
		// reissued either.
		if _, err := r.storage.GetRoomByID(id); err == nil {
			continue
		}
		return id, nil
	}
	return "", ErrRoomIDGeneration
}

// Get returns the live room or ErrRoomNotFound.
func (r *RoomRegistry) Get(roomID string) (*models.ChatRoom, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Destroy tears a room down: the record is removed, both assignments are
// cleared and the persisted row is closed. Disconnect races make duplicate
// calls normal, so a second Destroy is a no-op.
func (r *RoomRegistry) Destroy(roomID string) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if ok {
		delete(r.rooms, roomID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.presence.Unassign(room.User1ID)
	r.presence.Unassign(room.User2ID)

	if err := r.storage.CloseRoom(roomID); err != nil {
		log.Printf("ERROR: Failed to close room %s in storage: %v", roomID, err)
	}

	if r.channels != nil {
		r.channels.NotifyRoomDestroyed(roomID)
	}
	log.Printf("Room %s destroyed", roomID)
}
