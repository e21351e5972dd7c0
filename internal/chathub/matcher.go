package chathub

import (
	"errors"
	"log"
	"strings"
	"sync"

	"coffeechat/backend/internal/models"
	"coffeechat/backend/internal/storage"
)

// ErrUserBanned refuses matchmaking for a banned profile.
var ErrUserBanned = errors.New("user is banned from matchmaking")

// MatcherService pairs waiting sessions. One poll is one atomic
// enqueue-and-scan: the mutex spans the whole operation so two sessions can
// never both claim the same third party.
type MatcherService struct {
	mu       sync.Mutex
	presence *PresenceDirectory
	registry *RoomRegistry
	storage  storage.Storage

	// EnforceLocation turns the location comparison from a soft signal into
	// a hard filter. Off by default.
	EnforceLocation bool
}

// NewMatcherService creates a matcher over the shared presence directory
// and room registry.
func NewMatcherService(presence *PresenceDirectory, registry *RoomRegistry, s storage.Storage) *MatcherService {
	return &MatcherService{
		presence: presence,
		registry: registry,
		storage:  s,
	}
}

// FindMatch handles one matchmaking poll for the session. It returns the
// room id once paired and "" while the caller should keep polling. Repeated
// polls are idempotent: an already-matched session gets its current room id
// back, an already-waiting one stays queued.
func (m *MatcherService) FindMatch(sessionKey string, useTempInterests bool, tempInterestsRaw string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if roomID, ok := m.presence.RoomFor(sessionKey); ok {
		return roomID, nil
	}

	user, err := m.storage.ResolveIdentity(sessionKey)
	if err != nil {
		return "", err
	}

	if banned, err := m.storage.IsUserBanned(user.ID); err != nil {
		log.Printf("WARNING: Ban check failed for %s: %v", user.ID, err)
	} else if banned {
		return "", ErrUserBanned
	}

	if staleID, err := m.storage.GetActiveRoomIDForUser(sessionKey); err != nil {
		log.Printf("WARNING: Active-room lookup failed for %s: %v", sessionKey, err)
	} else if staleID != "" {
		if _, regErr := m.registry.Get(staleID); regErr == nil {
			return staleID, nil
		}
		// An active row without a live registry entry is a leftover from a
		// previous process; close it so the session can match fresh.
		if err := m.storage.CloseRoom(staleID); err != nil {
			log.Printf("WARNING: Failed to close stale room %s: %v", staleID, err)
		}
	}

	var tempInterests []string
	if useTempInterests {
		tempInterests = parseInterestList(tempInterestsRaw)
	}

	if m.presence.Enqueue(sessionKey, tempInterests) {
		if err := m.storage.AddUserToSearchQueue(sessionKey); err != nil {
			log.Printf("WARNING: Failed to mirror search queue entry for %s: %v", sessionKey, err)
		}
	}

	partner := m.scanPool(sessionKey, user, tempInterests)
	if partner == "" {
		return "", nil
	}

	room, err := m.registry.Create(sessionKey, partner)
	if err != nil {
		// A lost race is not the caller's problem; they stay queued and the
		// next poll starts over.
		log.Printf("WARNING: Failed to create room for %s and %s: %v", sessionKey, partner, err)
		return "", nil
	}

	for _, sk := range []string{sessionKey, partner} {
		if err := m.storage.RemoveUserFromSearchQueue(sk); err != nil {
			log.Printf("WARNING: Failed to clear search queue mirror for %s: %v", sk, err)
		}
	}

	log.Printf("Match found: %s and %s in room %s", sessionKey, partner, room.RoomID)
	return room.RoomID, nil
}

// scanPool walks the waiting pool oldest-first and returns the first
// compatible partner's session key. First fit, not best fit: queue order
// breaks ties, which keeps matching fair to whoever waited longest.
func (m *MatcherService) scanPool(sessionKey string, user *models.User, tempInterests []string) string {
	userInterests := normalizeInterests(user.Interests)

	for _, entry := range m.presence.Waiting() {
		if entry.SessionID == sessionKey {
			continue
		}

		partner, err := m.storage.ResolveIdentity(entry.SessionID)
		if err != nil {
			continue
		}

		// Blocks cut both ways.
		if user.HasBlocked(partner.ID) || partner.HasBlocked(user.ID) {
			continue
		}

		// Session-scoped interests constrain only when both sides brought
		// some to this search.
		if len(tempInterests) > 0 && len(entry.TempInterests) > 0 &&
			!intersects(tempInterests, entry.TempInterests) {
			continue
		}

		partnerInterests := normalizeInterests(partner.Interests)
		if len(userInterests) > 0 && len(partnerInterests) > 0 &&
			!intersects(userInterests, partnerInterests) {
			continue
		}

		// The location comparison is a soft signal unless explicitly
		// promoted to a filter.
		if !user.SameLocation(partner) && m.EnforceLocation {
			continue
		}

		return entry.SessionID
	}
	return ""
}

// RestoreSearchQueue refills the waiting pool from its Redis mirror, so a
// session polling across a process restart keeps its place in line.
// Session-scoped interests are not mirrored and do not survive the restart.
func (m *MatcherService) RestoreSearchQueue() {
	m.mu.Lock()
	defer m.mu.Unlock()

	queued, err := m.storage.GetSearchingUsers()
	if err != nil {
		log.Printf("WARNING: Failed to read the search queue mirror: %v", err)
		return
	}
	for _, sessionKey := range queued {
		m.presence.Enqueue(sessionKey, nil)
	}
	if len(queued) > 0 {
		log.Printf("Restored %d waiting session(s) from the search queue mirror", len(queued))
	}
}

// Leave removes the session from the waiting pool. Active-room teardown is
// the connection handler's job; this only cancels a pending search.
func (m *MatcherService) Leave(sessionKey string) {
	m.presence.Dequeue(sessionKey)
	if err := m.storage.RemoveUserFromSearchQueue(sessionKey); err != nil {
		log.Printf("WARNING: Failed to clear search queue mirror for %s: %v", sessionKey, err)
	}
}

// parseInterestList splits a raw comma-separated interest string and
// normalizes each entry.
func parseInterestList(raw string) []string {
	return normalizeInterests(strings.Split(raw, ","))
}

// normalizeInterests trims, lowercases and drops empty tags.
func normalizeInterests(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if trimmed := strings.ToLower(strings.TrimSpace(t)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}
