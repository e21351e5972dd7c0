package chathub

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyAssigned signals that a session already holds an active room.
var ErrAlreadyAssigned = errors.New("session is already assigned to a room")

// WaitingEntry is one session sitting in the waiting pool.
type WaitingEntry struct {
	SessionID string
	// TempInterests are the session-scoped interests supplied on this
	// search only, already normalized.
	TempInterests []string
	EnqueuedAt    time.Time
}

// PresenceDirectory owns the waiting pool and the active-room assignment
// map. All mutation goes through its methods; a single mutex makes every
// operation linearizable with respect to concurrent matching attempts.
//
// Invariant: a session appears in at most one of {waiting pool, assignment
// map} at any instant.
type PresenceDirectory struct {
	mu      sync.Mutex
	waiting []WaitingEntry      // FIFO, oldest first
	inPool  map[string]struct{} // session -> waiting membership
	rooms   map[string]string   // session -> room
	inRoom  map[string][]string // room -> sessions
}

// NewPresenceDirectory creates an empty directory.
func NewPresenceDirectory() *PresenceDirectory {
	return &PresenceDirectory{
		inPool: make(map[string]struct{}),
		rooms:  make(map[string]string),
		inRoom: make(map[string][]string),
	}
}

// Enqueue inserts a waiting entry for the session. Re-enqueuing a session
// that is already waiting is a no-op; a session holding a room is refused.
func (p *PresenceDirectory) Enqueue(sessionID string, tempInterests []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, waiting := p.inPool[sessionID]; waiting {
		return false
	}
	if _, assigned := p.rooms[sessionID]; assigned {
		return false
	}
	p.waiting = append(p.waiting, WaitingEntry{
		SessionID:     sessionID,
		TempInterests: tempInterests,
		EnqueuedAt:    time.Now(),
	})
	p.inPool[sessionID] = struct{}{}
	return true
}

// Dequeue removes the session's waiting entry, if any.
func (p *PresenceDirectory) Dequeue(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeWaiting(sessionID)
}

func (p *PresenceDirectory) removeWaiting(sessionID string) {
	if _, ok := p.inPool[sessionID]; !ok {
		return
	}
	delete(p.inPool, sessionID)
	for i, w := range p.waiting {
		if w.SessionID == sessionID {
			p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
			return
		}
	}
}

// Assign records the session's active room. The waiting entry, if present,
// is removed in the same step so the at-most-one-of invariant holds.
func (p *PresenceDirectory) Assign(sessionID, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, assigned := p.rooms[sessionID]; assigned {
		return ErrAlreadyAssigned
	}
	p.removeWaiting(sessionID)
	p.rooms[sessionID] = roomID
	p.inRoom[roomID] = append(p.inRoom[roomID], sessionID)
	return nil
}

// Unassign clears the session's active room, if any.
func (p *PresenceDirectory) Unassign(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	roomID, ok := p.rooms[sessionID]
	if !ok {
		return
	}
	delete(p.rooms, sessionID)

	members := p.inRoom[roomID]
	for i, id := range members {
		if id == sessionID {
			members = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(members) == 0 {
		delete(p.inRoom, roomID)
	} else {
		p.inRoom[roomID] = members
	}
}

// RoomFor returns the session's active room, if assigned.
func (p *PresenceDirectory) RoomFor(sessionID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	roomID, ok := p.rooms[sessionID]
	return roomID, ok
}

// SessionsInRoom returns the sessions currently assigned to the room.
func (p *PresenceDirectory) SessionsInRoom(roomID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	members := p.inRoom[roomID]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// Waiting returns a snapshot of the waiting pool in FIFO order.
func (p *PresenceDirectory) Waiting() []WaitingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]WaitingEntry, len(p.waiting))
	copy(out, p.waiting)
	return out
}

// IsWaiting reports whether the session sits in the waiting pool.
func (p *PresenceDirectory) IsWaiting(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inPool[sessionID]
	return ok
}
