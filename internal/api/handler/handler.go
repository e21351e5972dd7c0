package handler

import (
	"coffeechat/backend/internal/chathub"
	"coffeechat/backend/internal/config"
	"coffeechat/backend/internal/storage"
)

// Handler bundles the matchmaking core behind the HTTP surface.
type Handler struct {
	Matcher  *chathub.MatcherService
	Registry *chathub.RoomRegistry
	Channels *chathub.ChannelHub
	Presence *chathub.PresenceDirectory
	Storage  storage.Storage
	Cfg      config.Config
}

func NewHandler(
	matcher *chathub.MatcherService,
	registry *chathub.RoomRegistry,
	channels *chathub.ChannelHub,
	presence *chathub.PresenceDirectory,
	s storage.Storage,
	cfg config.Config,
) *Handler {
	return &Handler{
		Matcher:  matcher,
		Registry: registry,
		Channels: channels,
		Presence: presence,
		Storage:  s,
		Cfg:      cfg,
	}
}
