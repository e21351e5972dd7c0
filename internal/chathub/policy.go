package chathub

import (
	"errors"
	"fmt"

	"coffeechat/backend/internal/models"
)

// ErrMalformedEvent means an inbound event failed validation. The event is
// dropped; the connection stays open.
var ErrMalformedEvent = errors.New("malformed event")

// eventPolicy describes how one event kind travels through a room channel.
// Delivery back to the sender varies per kind, so it is data here rather
// than control flow: chat and media are echoed (tagged so the client can
// self-identify), typing and signaling are suppressed for their sender.
type eventPolicy struct {
	// DeliverToSender controls self-echo for the kind.
	DeliverToSender bool
	// Validate checks the inbound payload's required fields. Nil means the
	// kind cannot arrive from a client (server-originated only).
	Validate func(ev *models.ChannelEvent) error
}

var eventPolicies = map[string]eventPolicy{
	models.EventTyping: {
		DeliverToSender: false,
		Validate:        func(ev *models.ChannelEvent) error { return nil },
	},
	models.EventMessage: {
		DeliverToSender: true,
		Validate: func(ev *models.ChannelEvent) error {
			if ev.Message == "" {
				return fmt.Errorf("%w: message requires text", ErrMalformedEvent)
			}
			return nil
		},
	},
	models.EventMedia: {
		DeliverToSender: true,
		Validate: func(ev *models.ChannelEvent) error {
			if ev.Filename == "" || ev.ContentType == "" || ev.Data == "" {
				return fmt.Errorf("%w: media requires filename, content_type and data", ErrMalformedEvent)
			}
			return nil
		},
	},
	models.EventVideoOffer: {
		DeliverToSender: false,
		Validate: func(ev *models.ChannelEvent) error {
			if len(ev.Offer) == 0 {
				return fmt.Errorf("%w: video-offer requires an offer", ErrMalformedEvent)
			}
			return nil
		},
	},
	models.EventVideoAnswer: {
		DeliverToSender: false,
		Validate: func(ev *models.ChannelEvent) error {
			if len(ev.Answer) == 0 {
				return fmt.Errorf("%w: video-answer requires an answer", ErrMalformedEvent)
			}
			return nil
		},
	},
	models.EventICECandidate: {
		DeliverToSender: false,
		Validate: func(ev *models.ChannelEvent) error {
			if len(ev.Candidate) == 0 {
				return fmt.Errorf("%w: ice-candidate requires candidate data", ErrMalformedEvent)
			}
			return nil
		},
	},
	// room_closed is server-originated; the closing side never needs its
	// own notice back.
	models.EventRoomClosed: {DeliverToSender: false},
}

// ValidateInbound checks a client-supplied event against its kind's policy.
func ValidateInbound(ev *models.ChannelEvent) error {
	policy, ok := eventPolicies[ev.Type]
	if !ok || policy.Validate == nil {
		return fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, ev.Type)
	}
	return policy.Validate(ev)
}
