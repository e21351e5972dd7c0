package handler

import (
	"testing"

	"coffeechat/backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestJWTRoundTrip(t *testing.T) {
	h := &Handler{Cfg: config.Config{JWTSecret: "test-secret"}}

	token, err := h.generateJWT("sess_abc")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	sessionID, err := h.validateAndGetSessionID(token)
	assert.NoError(t, err)
	assert.Equal(t, "sess_abc", sessionID)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	issuer := &Handler{Cfg: config.Config{JWTSecret: "secret-one"}}
	verifier := &Handler{Cfg: config.Config{JWTSecret: "secret-two"}}

	token, err := issuer.generateJWT("sess_abc")
	assert.NoError(t, err)

	_, err = verifier.validateAndGetSessionID(token)
	assert.Error(t, err)
}

func TestJWTRejectsGarbage(t *testing.T) {
	h := &Handler{Cfg: config.Config{JWTSecret: "test-secret"}}

	_, err := h.validateAndGetSessionID("not-a-token")
	assert.Error(t, err)
}
