package models

import "encoding/json"

// Event kinds carried over the room event stream.
const (
	EventTyping       = "typing"
	EventMessage      = "message"
	EventMedia        = "media"
	EventVideoOffer   = "video-offer"
	EventVideoAnswer  = "video-answer"
	EventICECandidate = "ice-candidate"
	EventRoomClosed   = "room_closed"
)

// ChannelEvent is a single event relayed through a room channel. It doubles
// as the wire format in both directions: inbound fields are filled by the
// client, SenderID/SenderName/ID are stamped server-side, and the Self /
// IsSelf flags are computed per receiving connection right before delivery.
type ChannelEvent struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	RoomID   string `json:"room_id,omitempty"`
	SenderID string `json:"sender_id,omitempty"`
	// SenderName is only populated on media events.
	SenderName string `json:"sender_name,omitempty"`
	// Message carries chat text, or the human-readable reason on a
	// room_closed event.
	Message     string `json:"message,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	// Data is the base64-encoded media payload.
	Data string `json:"data,omitempty"`
	// WebRTC signaling payloads are passed through opaque.
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`

	// Self is set on outbound message events, IsSelf on outbound media
	// events. Pointers so that an explicit false still serializes.
	Self   *bool `json:"self,omitempty"`
	IsSelf *bool `json:"is_self,omitempty"`
}

// MatchRequest is the body of a matchmaking poll.
type MatchRequest struct {
	UseTempInterests bool   `json:"use_temp_interests"`
	TempInterestsRaw string `json:"temp_interests_raw"`
}
