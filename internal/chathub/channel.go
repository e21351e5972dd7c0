package chathub

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"coffeechat/backend/internal/idgen"
	"coffeechat/backend/internal/models"
)

// RoomState is the lifecycle state of a room channel.
//
//	Empty -> Pairing -> Active -> Closing -> Destroyed
//
// There is no way back from Closing or Destroyed; a disconnect while still
// Pairing skips straight to Destroyed with no closure broadcast.
type RoomState int

const (
	StateEmpty RoomState = iota
	StatePairing
	StateActive
	StateClosing
	StateDestroyed
)

func (s RoomState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePairing:
		return "pairing"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

var (
	// ErrChannelClosing rejects subscribing to a room already shutting down.
	ErrChannelClosing = errors.New("room channel is closing")
	// ErrChannelFull rejects a third distinct subscriber.
	ErrChannelFull = errors.New("room channel already has two subscribers")
)

// Buffered per-subscriber queue; a subscriber that falls this far behind is
// dropped rather than allowed to block delivery to the other participant.
const subscriberBuffer = 32

// Subscription is one connection's handle on a room channel.
type Subscription struct {
	RoomID    string
	SessionID string
	// Events receives every event routed to this subscriber. Closed by the
	// hub on unsubscribe or when the subscriber is dropped as too slow.
	Events chan models.ChannelEvent
}

type roomChannel struct {
	state             RoomState
	subs              map[string]*Subscription
	registryDestroyed bool
}

// EventMirror receives a copy of every published event, keyed by room.
type EventMirror interface {
	MirrorRoomEvent(roomID string, payload []byte) error
}

// ChannelHub manages the per-room publish/subscribe buses. Channels are
// created lazily on first subscribe and reclaimed once the last subscriber
// is gone and the registry has destroyed the room, whichever happens later,
// so a fast reconnect never races channel teardown.
type ChannelHub struct {
	mu     sync.Mutex
	rooms  map[string]*roomChannel
	mirror EventMirror // may be nil
	// roomLive reports whether the registry still tracks the room. Nil when
	// the hub runs standalone.
	roomLive func(roomID string) bool
}

// NewChannelHub creates an empty hub. mirror may be nil.
func NewChannelHub(mirror EventMirror) *ChannelHub {
	return &ChannelHub{
		rooms:  make(map[string]*roomChannel),
		mirror: mirror,
	}
}

// SetRoomCheck wires the registry-side liveness probe consulted on
// subscribe.
func (h *ChannelHub) SetRoomCheck(live func(roomID string) bool) {
	h.roomLive = live
}

// Subscribe attaches a session to the room's channel. A re-subscribe by the
// same session replaces the previous subscription.
func (h *ChannelHub) Subscribe(roomID, sessionID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.roomLive != nil && !h.roomLive(roomID) {
		// The registry no longer tracks the room: its destroy notification
		// either already ran or, when it beat the first subscriber here,
		// will never come for a lazily created entry. Reclaim any empty
		// leftover and refuse the subscriber.
		if ch, ok := h.rooms[roomID]; ok && len(ch.subs) == 0 {
			delete(h.rooms, roomID)
		}
		return nil, ErrChannelClosing
	}

	ch, ok := h.rooms[roomID]
	if !ok {
		ch = &roomChannel{state: StateEmpty, subs: make(map[string]*Subscription)}
		h.rooms[roomID] = ch
	}
	if ch.state >= StateClosing {
		return nil, ErrChannelClosing
	}
	if prev, ok := ch.subs[sessionID]; ok {
		close(prev.Events)
		delete(ch.subs, sessionID)
	}
	if len(ch.subs) >= 2 {
		return nil, ErrChannelFull
	}

	sub := &Subscription{
		RoomID:    roomID,
		SessionID: sessionID,
		Events:    make(chan models.ChannelEvent, subscriberBuffer),
	}
	ch.subs[sessionID] = sub

	switch len(ch.subs) {
	case 1:
		ch.state = StatePairing
	case 2:
		ch.state = StateActive
	}
	return sub, nil
}

// Publish routes an event to the room's subscribers according to the
// per-kind delivery policy. Publishing into an unknown room is a no-op.
func (h *ChannelHub) Publish(roomID string, ev models.ChannelEvent) {
	ev.ID = idgen.NewULID()
	ev.RoomID = roomID
	policy := eventPolicies[ev.Type]

	h.mu.Lock()
	ch, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}

	for sessionID, sub := range ch.subs {
		if !policy.DeliverToSender && sessionID == ev.SenderID {
			continue
		}
		select {
		case sub.Events <- ev:
		default:
			// Subscriber is not draining its queue; cut it loose instead of
			// stalling the room.
			log.Printf("WARNING: Dropping slow subscriber %s in room %s", sessionID, roomID)
			close(sub.Events)
			delete(ch.subs, sessionID)
		}
	}

	if ev.Type == models.EventRoomClosed && ch.state < StateClosing {
		ch.state = StateClosing
	}
	h.mu.Unlock()

	if h.mirror != nil {
		if payload, err := json.Marshal(ev); err == nil {
			if err := h.mirror.MirrorRoomEvent(roomID, payload); err != nil {
				log.Printf("WARNING: Failed to mirror event %s for room %s: %v", ev.ID, roomID, err)
			}
		}
	}
}

// CloseRoom broadcasts the terminal room_closed notice to every subscriber
// and flips the channel to Closing. The channel itself is reclaimed later,
// once the subscribers unsubscribe and the registry destroy lands.
func (h *ChannelHub) CloseRoom(roomID, reason string) {
	h.Publish(roomID, models.ChannelEvent{
		Type:     models.EventRoomClosed,
		SenderID: "system",
		Message:  reason,
	})
}

// Unsubscribe detaches a subscription. When this empties a room whose
// registry record is already gone, the channel is reclaimed.
func (h *ChannelHub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.rooms[sub.RoomID]
	if !ok {
		return
	}
	if cur, ok := ch.subs[sub.SessionID]; ok && cur == sub {
		close(cur.Events)
		delete(ch.subs, sub.SessionID)
	}
	if len(ch.subs) == 0 && ch.registryDestroyed {
		delete(h.rooms, sub.RoomID)
	}
}

// NotifyRoomDestroyed records that the registry has torn the room down. The
// channel is reclaimed immediately if nobody is subscribed anymore.
func (h *ChannelHub) NotifyRoomDestroyed(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.rooms[roomID]
	if !ok {
		return
	}
	ch.registryDestroyed = true
	if len(ch.subs) == 0 {
		delete(h.rooms, roomID)
	}
}

// State reports the channel's lifecycle state. Rooms the hub no longer
// tracks are Destroyed.
func (h *ChannelHub) State(roomID string) RoomState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.rooms[roomID]; ok {
		return ch.state
	}
	return StateDestroyed
}

// SubscriberCount returns how many connections the room channel serves.
func (h *ChannelHub) SubscriberCount(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.rooms[roomID]; ok {
		return len(ch.subs)
	}
	return 0
}
