package chathub_test

import (
	"coffeechat/backend/internal/chathub"
	"coffeechat/backend/internal/models"
	"coffeechat/backend/internal/storage"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify/mock implementation of the storage.Storage
// interface, shared by the chathub tests.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) ResolveIdentity(sessionKey string) (*models.User, error) {
	args := m.Called(sessionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SaveRoom(room *models.ChatRoom) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *MockStorage) CloseRoom(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStorage) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockStorage) GetActiveRoomIDForUser(sessionKey string) (string, error) {
	args := m.Called(sessionKey)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) IsUserBanned(userID string) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) AddUserToSearchQueue(sessionKey string) error {
	args := m.Called(sessionKey)
	return args.Error(0)
}

func (m *MockStorage) RemoveUserFromSearchQueue(sessionKey string) error {
	args := m.Called(sessionKey)
	return args.Error(0)
}

func (m *MockStorage) GetSearchingUsers() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) MirrorRoomEvent(roomID string, payload []byte) error {
	args := m.Called(roomID, payload)
	return args.Error(0)
}

var _ storage.Storage = (*MockStorage)(nil)

// newTestCore wires a presence directory, registry, channel hub and matcher
// around the given mock, the same way cmd/main does it.
func newTestCore(s storage.Storage) (*chathub.PresenceDirectory, *chathub.RoomRegistry, *chathub.ChannelHub, *chathub.MatcherService) {
	presence := chathub.NewPresenceDirectory()
	registry := chathub.NewRoomRegistry(presence, s)
	channels := chathub.NewChannelHub(nil)
	registry.SetChannelHub(channels)
	matcher := chathub.NewMatcherService(presence, registry, s)
	return presence, registry, channels, matcher
}

// stubIdentity registers a resolvable profile on the mock and returns it.
func stubIdentity(m *MockStorage, sessionKey, id string, interests []string) *models.User {
	user := &models.User{
		ID:         id,
		SessionKey: sessionKey,
		Name:       "anon-" + id,
		Interests:  interests,
	}
	m.On("ResolveIdentity", sessionKey).Return(user, nil)
	return user
}

// allowQueueMirroring makes the Redis-mirror and persistence calls of a
// matching poll succeed silently.
func allowQueueMirroring(m *MockStorage) {
	m.On("IsUserBanned", mock.Anything).Return(false, nil).Maybe()
	m.On("GetActiveRoomIDForUser", mock.Anything).Return("", nil).Maybe()
	m.On("GetRoomByID", mock.Anything).Return(nil, storage.ErrRoomRecordNotFound).Maybe()
	m.On("AddUserToSearchQueue", mock.Anything).Return(nil).Maybe()
	m.On("RemoveUserFromSearchQueue", mock.Anything).Return(nil).Maybe()
	m.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).Return(nil).Maybe()
	m.On("CloseRoom", mock.AnythingOfType("string")).Return(nil).Maybe()
}
