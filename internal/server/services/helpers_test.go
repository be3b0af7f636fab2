package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timn835/crypto-chat/internal/cryptox"
	"github.com/timn835/crypto-chat/internal/logging"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/server/config"
	"github.com/timn835/crypto-chat/internal/server/metrics"
	"github.com/timn835/crypto-chat/internal/server/presence"
	"github.com/timn835/crypto-chat/internal/server/repositories/memory"
)

type fakeConn struct {
	id, userID string

	mu     sync.Mutex
	events []models.Event
}

func newFakeConn(id, userID string) *fakeConn { return &fakeConn{id: id, userID: userID} }

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.userID }
func (c *fakeConn) Send(ev models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) Events() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Event(nil), c.events...)
}

func (c *fakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type fixture struct {
	store    *memory.Store
	registry *presence.Registry
	metrics  *metrics.Metrics
	chat     *ChatService
	users    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	m := metrics.New()
	reg := presence.NewRegistry(m.LiveConnections, m.OnlineUsers)
	rm := memory.Manager{Store: store}
	cfg := &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour}
	return &fixture{
		store:    store,
		registry: reg,
		metrics:  m,
		chat:     NewChatService(rm, reg, m, logging.NopLogger{}),
		users:    NewUserService(rm, cfg),
	}
}

func (f *fixture) addUser(t *testing.T, id, handle string) {
	t.Helper()
	hash, err := cryptox.HashPassword("secret")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, f.store.Users().Store(ctx, &models.User{ID: id, Handle: handle, Hash: hash}))
	require.NoError(t, f.store.Users().StoreHandle(ctx, handle, id))
}

// connect registers a connection for userID through ChatService.Connect.
func (f *fixture) connect(t *testing.T, connID, userID string) *fakeConn {
	t.Helper()
	c := newFakeConn(connID, userID)
	require.NoError(t, f.chat.Connect(context.Background(), c))
	return c
}
