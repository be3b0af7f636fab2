package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/logging"
	"github.com/timn835/crypto-chat/internal/server/auth"
	"github.com/timn835/crypto-chat/internal/server/config"
	"github.com/timn835/crypto-chat/internal/server/repositories/memory"
	"github.com/timn835/crypto-chat/internal/server/repositories/usercache"
	"github.com/timn835/crypto-chat/internal/server/repositories/users"
)

func TestUserService_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.users.Register(ctx, "Tim", "pa55word", "tim@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Tim", reg.Handle)
	assert.NotEmpty(t, reg.UserID)

	id, err := auth.GetUserIDFromToken(reg.AccessToken, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, id)

	u, err := f.store.Users().GetByID(ctx, reg.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, "pa55word", u.Hash)

	gotID, err := f.store.Users().GetIDByHandle(ctx, "tim")
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, gotID)

	login, err := f.users.Login(ctx, "TIM", "pa55word")
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, login.UserID)
	assert.NotEmpty(t, login.AccessToken)
}

func TestUserService_Register_HandleTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Register(ctx, "alice", "pw", "")
	require.NoError(t, err)

	_, err = f.users.Register(ctx, "ALICE", "pw2", "")
	assert.ErrorIs(t, err, common.ErrHandleTaken)
	assert.Equal(t, 1, f.store.Calls(memory.OpStoreUser))
}

func TestUserService_Register_Validation(t *testing.T) {
	tests := []struct {
		name, handle, password, email string
	}{
		{"empty handle", "", "pw", ""},
		{"empty password", "bob", "", ""},
		{"long handle", strings.Repeat("h", MaxHandleLength+1), "pw", ""},
		{"long password", "bob", strings.Repeat("p", MaxPasswordLength+1), ""},
		{"long email", "bob", "pw", strings.Repeat("e", MaxEmailLength) + "@x.io"},
		{"bad email", "bob", "pw", "not-an-email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.users.Register(context.Background(), tt.handle, tt.password, tt.email)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Zero(t, f.store.Calls(memory.OpStoreUser))
		})
	}
}

func TestUserService_Register_EmailAccepted(t *testing.T) {
	for _, email := range []string{"a.b-c+tag@mail.example.co", "UPPER@Example.COM", "x_y@d-n.org"} {
		assert.NoError(t, validateRegistration("bob", "pw", email), email)
	}
}

func TestUserService_Register_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.store.Fail(memory.OpGetIDByHandle, common.StorageError(assert.AnError))

	_, err := f.users.Register(context.Background(), "bob", "pw", "")
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
}

func TestUserService_Login_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "u1", "tim")

	_, err := f.users.Login(ctx, "tim", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.users.Login(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.users.Login(ctx, "", "secret")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	f.store.Fail(memory.OpGetUser, common.StorageError(assert.AnError))
	_, err = f.users.Login(ctx, "tim", "secret")
	assert.ErrorIs(t, err, common.ErrorInternal)

	res, err := f.users.Login(ctx, "tim", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.UserID)
}

// cachedUsersManager serves users through the Redis decorator.
type cachedUsersManager struct {
	memory.Manager
	users users.Repository
}

func (m cachedUsersManager) Users() users.Repository { return m.users }

func TestUserService_LoginBehindUserCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	store := memory.New()
	cached := usercache.New(store.Users(), rc, time.Minute, logging.NopLogger{})
	cfg := &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour}
	svc := NewUserService(cachedUsersManager{Manager: memory.Manager{Store: store}, users: cached}, cfg)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Tim", "pa55word", "")
	require.NoError(t, err)

	u, err := cached.GetByID(ctx, reg.UserID)
	require.NoError(t, err)
	assert.Empty(t, u.Hash)
	stored, err := mr.Get("chat:user:" + reg.UserID)
	require.NoError(t, err)
	assert.NotContains(t, stored, "argon2id")

	res, err := svc.Login(ctx, "tim", "pa55word")
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, res.UserID)

	_, err = svc.Login(ctx, "tim", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}
