package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"coffeechat/backend/internal/chathub"
	"coffeechat/backend/internal/config"
	"coffeechat/backend/internal/models"
	"coffeechat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

// fakeStorage is an in-memory storage.Storage for handler tests; no
// database or Redis required.
type fakeStorage struct {
	mu    sync.Mutex
	users map[string]*models.User // by session key
	rooms map[string]*models.ChatRoom
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		users: make(map[string]*models.User),
		rooms: make(map[string]*models.ChatRoom),
	}
}

func (f *fakeStorage) SaveUser(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		user.BeforeCreate(nil)
	}
	f.users[user.SessionKey] = user
	return nil
}

func (f *fakeStorage) ResolveIdentity(sessionKey string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[sessionKey]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeStorage) SaveRoom(room *models.ChatRoom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.RoomID] = room
	return nil
}

func (f *fakeStorage) CloseRoom(roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[roomID]; ok {
		room.IsActive = false
		room.EndedAt = time.Now()
	}
	return nil
}

func (f *fakeStorage) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, storage.ErrRoomRecordNotFound
	}
	return room, nil
}

func (f *fakeStorage) GetActiveRoomIDForUser(sessionKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, room := range f.rooms {
		if room.IsActive && room.HasParticipant(sessionKey) {
			return room.RoomID, nil
		}
	}
	return "", nil
}

func (f *fakeStorage) IsUserBanned(userID string) (bool, error) { return false, nil }

func (f *fakeStorage) AddUserToSearchQueue(sessionKey string) error { return nil }

func (f *fakeStorage) RemoveUserFromSearchQueue(sessionKey string) error { return nil }

func (f *fakeStorage) GetSearchingUsers() ([]string, error) { return nil, nil }

func (f *fakeStorage) MirrorRoomEvent(roomID string, payload []byte) error { return nil }

var _ storage.Storage = (*fakeStorage)(nil)

// newTestServer stands up the full HTTP surface over in-memory state.
func newTestServer(t *testing.T, fs *fakeStorage) (*httptest.Server, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{JWTSecret: "test-secret", MaxEventBytes: 512 * 1024}
	presence := chathub.NewPresenceDirectory()
	registry := chathub.NewRoomRegistry(presence, fs)
	channels := chathub.NewChannelHub(fs)
	registry.SetChannelHub(channels)
	matcher := chathub.NewMatcherService(presence, registry, fs)

	h := NewHandler(matcher, registry, channels, presence, fs, cfg)

	r := gin.New()
	r.GET("/session", h.GetSession)
	r.POST("/chat/match", h.FindMatch)
	r.POST("/chat/leave", h.Leave)
	r.GET("/ws/:room_id", h.ServeWebSocket)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h
}

func addUser(fs *fakeStorage, sessionKey string, interests []string) {
	fs.SaveUser(&models.User{
		SessionKey: sessionKey,
		Name:       "anon-" + sessionKey,
		Interests:  interests,
	})
}

func postMatch(t *testing.T, srv *httptest.Server, token, body string) map[string]any {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/chat/match", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + roomID + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ChannelEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.ChannelEvent
	assert.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestMatchEndpoint_PairsTwoSessions(t *testing.T) {
	fs := newFakeStorage()
	addUser(fs, "sess_a", []string{"music"})
	addUser(fs, "sess_b", []string{"music"})
	srv, h := newTestServer(t, fs)

	tokenA, _ := h.generateJWT("sess_a")
	tokenB, _ := h.generateJWT("sess_b")

	out := postMatch(t, srv, tokenA, `{}`)
	assert.Nil(t, out["room_id"], "first poll keeps waiting")

	out = postMatch(t, srv, tokenB, `{}`)
	roomID, _ := out["room_id"].(string)
	assert.NotEmpty(t, roomID)

	// A's next poll returns the same room.
	out = postMatch(t, srv, tokenA, `{}`)
	assert.Equal(t, roomID, out["room_id"])
}

func TestMatchEndpoint_RequiresToken(t *testing.T) {
	fs := newFakeStorage()
	srv, _ := newTestServer(t, fs)

	resp, err := http.Post(srv.URL+"/chat/match", "application/json", strings.NewReader(`{}`))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_RelayAndTeardown(t *testing.T) {
	fs := newFakeStorage()
	addUser(fs, "sess_a", nil)
	addUser(fs, "sess_b", nil)
	srv, h := newTestServer(t, fs)

	room, err := h.Registry.Create("sess_a", "sess_b")
	assert.NoError(t, err)

	tokenA, _ := h.generateJWT("sess_a")
	tokenB, _ := h.generateJWT("sess_b")
	connA := dialRoom(t, srv, room.RoomID, tokenA)
	connB := dialRoom(t, srv, room.RoomID, tokenB)
	defer connB.Close()

	// A chat message reaches both sides, tagged relative to the receiver.
	err = connA.WriteJSON(map[string]string{"type": "message", "message": "hello"})
	assert.NoError(t, err)

	echoed := readEvent(t, connA)
	assert.Equal(t, models.EventMessage, echoed.Type)
	assert.Equal(t, "hello", echoed.Message)
	if assert.NotNil(t, echoed.Self) {
		assert.True(t, *echoed.Self)
	}

	received := readEvent(t, connB)
	assert.Equal(t, "hello", received.Message)
	if assert.NotNil(t, received.Self) {
		assert.False(t, *received.Self)
	}

	// A malformed event is dropped without killing the connection.
	assert.NoError(t, connA.WriteJSON(map[string]string{"type": "message"}))
	assert.NoError(t, connA.WriteJSON(map[string]string{"type": "typing"}))
	typing := readEvent(t, connB)
	assert.Equal(t, models.EventTyping, typing.Type)

	// Disconnecting A delivers exactly one room_closed to B and the room
	// becomes unreachable.
	connA.Close()
	closed := readEvent(t, connB)
	assert.Equal(t, models.EventRoomClosed, closed.Type)
	assert.NotEmpty(t, closed.Message)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := h.Registry.Get(room.RoomID); errors.Is(err, chathub.ErrRoomNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("room was never destroyed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_RejectsOutsiders(t *testing.T) {
	fs := newFakeStorage()
	addUser(fs, "sess_a", nil)
	addUser(fs, "sess_b", nil)
	addUser(fs, "sess_intruder", nil)
	srv, h := newTestServer(t, fs)

	room, err := h.Registry.Create("sess_a", "sess_b")
	assert.NoError(t, err)

	token, _ := h.generateJWT("sess_intruder")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + room.RoomID + "?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	// Unknown room: redirect-equivalent not found.
	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/nope1234?token=" + token
	_, resp, err = websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestLeaveEndpoint_ClosesActiveRoom(t *testing.T) {
	fs := newFakeStorage()
	addUser(fs, "sess_a", nil)
	addUser(fs, "sess_b", nil)
	srv, h := newTestServer(t, fs)

	room, err := h.Registry.Create("sess_a", "sess_b")
	assert.NoError(t, err)

	tokenB, _ := h.generateJWT("sess_b")
	connB := dialRoom(t, srv, room.RoomID, tokenB)
	defer connB.Close()

	tokenA, _ := h.generateJWT("sess_a")
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/chat/leave", nil)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	closed := readEvent(t, connB)
	assert.Equal(t, models.EventRoomClosed, closed.Type)

	_, err = h.Registry.Get(room.RoomID)
	assert.ErrorIs(t, err, chathub.ErrRoomNotFound)

	// Leaving with nothing to leave is still a success.
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/chat/leave", nil)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	resp, err = http.DefaultClient.Do(req)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
