package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"coffeechat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

// generateJWT signs a token carrying the anonymous session id.
func (h *Handler) generateJWT(sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        time.Now().Add(time.Hour * 72).Unix(),
		"iss":        "coffeechat-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.Cfg.JWTSecret))
}

// validateAndGetSessionID verifies the token and extracts the session id.
func (h *Handler) validateAndGetSessionID(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(h.Cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	sessionID, _ := claims["session_id"].(string)
	if sessionID == "" {
		return "", errors.New("token carries no session id")
	}
	return sessionID, nil
}

// sessionFromRequest resolves the caller's session id from the bearer token
// (Authorization header, or ?token= for WebSocket handshakes).
func (h *Handler) sessionFromRequest(c *gin.Context) (string, bool) {
	tokenString := c.Query("token")
	if tokenString == "" {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return "", false
	}
	sessionID, err := h.validateAndGetSessionID(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return "", false
	}
	return sessionID, true
}

// GetSession mints an anonymous session: a fresh profile row keyed by a new
// session id, plus the JWT the client presents from here on.
func (h *Handler) GetSession(c *gin.Context) {
	sessionID := uuid.NewString()

	user := &models.User{
		SessionKey: sessionID,
		Name:       "anon-" + sessionID[:8],
	}
	if err := h.Storage.SaveUser(user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	token, err := h.generateJWT(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "session_id": sessionID})
}
