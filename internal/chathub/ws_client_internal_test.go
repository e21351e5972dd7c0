package chathub

import (
	"testing"

	"coffeechat/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTagForReceiver(t *testing.T) {
	c := &WebSocketClient{SessionID: "sess_a"}

	own := models.ChannelEvent{Type: models.EventMessage, SenderID: "sess_a", Message: "hi"}
	c.tagForReceiver(&own)
	if assert.NotNil(t, own.Self) {
		assert.True(t, *own.Self, "sender sees self=true on its own message")
	}
	assert.Nil(t, own.IsSelf)

	theirs := models.ChannelEvent{Type: models.EventMessage, SenderID: "sess_b", Message: "hi"}
	c.tagForReceiver(&theirs)
	if assert.NotNil(t, theirs.Self) {
		assert.False(t, *theirs.Self, "receiver sees self=false on the partner's message")
	}

	media := models.ChannelEvent{Type: models.EventMedia, SenderID: "sess_b"}
	c.tagForReceiver(&media)
	if assert.NotNil(t, media.IsSelf) {
		assert.False(t, *media.IsSelf)
	}
	assert.Nil(t, media.Self, "media uses is_self, not self")

	typing := models.ChannelEvent{Type: models.EventTyping, SenderID: "sess_b"}
	c.tagForReceiver(&typing)
	assert.Nil(t, typing.Self)
	assert.Nil(t, typing.IsSelf, "typing carries no self flag at all")
}
