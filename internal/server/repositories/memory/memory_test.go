package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/server/repositories/chatlinks"
	msgrepo "github.com/timn835/crypto-chat/internal/server/repositories/messages"
	"github.com/timn835/crypto-chat/internal/server/repositories/users"
)

var (
	_ users.Repository     = (*Users)(nil)
	_ chatlinks.Repository = (*ChatLinks)(nil)
	_ msgrepo.Repository   = (*Messages)(nil)
)

func TestFailInjection(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	s.Fail(OpAppendMessage, boom)
	m := &models.Message{ChatID: "x", Time: 1}
	assert.ErrorIs(t, s.Messages().Append(ctx, m), boom)
	assert.NoError(t, s.Messages().Append(ctx, m))
	assert.ErrorIs(t, s.Messages().Append(ctx, m), common.ErrMessageTimeTaken)
	assert.Equal(t, 3, s.Calls(OpAppendMessage))
}

func TestBatchGetLast_CountsChunks(t *testing.T) {
	s := New()
	ctx := context.Background()

	var keys []models.MessageKey
	for i := 0; i < 201; i++ {
		require.NoError(t, s.Messages().Append(ctx, &models.Message{ChatID: fmt.Sprint(i), Time: 7}))
		keys = append(keys, models.MessageKey{ChatID: fmt.Sprint(i), Time: 7})
	}
	keys = append(keys, models.MessageKey{ChatID: "missing", Time: 7})

	got, err := s.Messages().BatchGetLast(ctx, keys)
	require.NoError(t, err)
	assert.Len(t, got, 201)
	assert.Equal(t, 3, s.Calls(OpBatchGetLast))

	s.Fail(OpBatchGetLast, nil, errors.New("throttled"))
	got, err = s.Messages().BatchGetLast(ctx, keys)
	assert.Nil(t, got)
	assert.Error(t, err)
}

func TestLinks_UpdateNeverCreates(t *testing.T) {
	s := New()
	ctx := context.Background()

	assert.ErrorIs(t, s.ChatLinks().Update(ctx, "u1", "x", 5, 1), common.ErrorNotFound)
	assert.ErrorIs(t, s.ChatLinks().ResetUnseen(ctx, "u1", "x"), common.ErrorNotFound)

	links, err := s.ChatLinks().List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestManager(t *testing.T) {
	s := New()
	m := Manager{Store: s}
	ctx := context.Background()

	require.NoError(t, m.RunMigrations(ctx))
	require.NoError(t, m.Users().Store(ctx, &models.User{ID: "u1", Handle: "tim"}))
	u, err := s.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "tim", u.Handle)
	assert.NoError(t, m.Close())
}
