package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/server/repositories/memory"
)

// startTimAlice creates a chat "c1" from tim (u1) to alice (u2) with both
// online and their event logs cleared.
func startTimAlice(t *testing.T, f *fixture) (tim, alice *fakeConn) {
	t.Helper()
	f.addUser(t, "u1", "tim")
	f.addUser(t, "u2", "alice")
	tim = f.connect(t, "conn-tim", "u1")
	alice = f.connect(t, "conn-alice", "u2")

	err := f.chat.StartChat(context.Background(), tim, models.StartChatRequest{
		TargetUserID: "u2",
		ChatID:       "c1",
		Message:      "hello world!",
		MessageTime:  1000,
	})
	require.NoError(t, err)
	return tim, alice
}

func TestStartChat_EventsAndLinks(t *testing.T) {
	f := newFixture(t)
	tim, alice := startTimAlice(t, f)
	ctx := context.Background()

	want := []models.Event{models.ChatStartedEvent(models.ChatPreview{
		ID:                    "c1",
		OtherUserHandle:       "alice",
		IsOtherUserConnected:  true,
		LastMessageHeader:     "hello worl...",
		LastMessageTime:       1000,
		IsAuthorOfLastMessage: true,
		UnseenMessages:        0,
	})}
	if diff := cmp.Diff(want, tim.Events()); diff != "" {
		t.Errorf("initiator events mismatch (-want +got):\n%s", diff)
	}

	want = []models.Event{models.ChatStartedEvent(models.ChatPreview{
		ID:                    "c1",
		OtherUserHandle:       "tim",
		IsOtherUserConnected:  true,
		LastMessageHeader:     "hello worl...",
		LastMessageTime:       1000,
		IsAuthorOfLastMessage: false,
		UnseenMessages:        1,
	})}
	if diff := cmp.Diff(want, alice.Events()); diff != "" {
		t.Errorf("recipient events mismatch (-want +got):\n%s", diff)
	}

	l1, err := f.store.ChatLinks().Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, models.ChatLink{UserID: "u1", ChatID: "c1", OtherUserID: "u2", OtherUserHandle: "alice",
		IsUserA: true, LastMessageTime: 1000}, *l1)

	l2, err := f.store.ChatLinks().Get(ctx, "u2", "c1")
	require.NoError(t, err)
	assert.Equal(t, models.ChatLink{UserID: "u2", ChatID: "c1", OtherUserID: "u1", OtherUserHandle: "tim",
		IsUserA: false, LastMessageTime: 1000, UnseenMessages: 1}, *l2)

	assert.Equal(t, 2, f.registry.RoomSize("c1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ConversationsStarted))
}

func TestStartChat_OfflineTarget(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "tim")
	f.addUser(t, "u2", "alice")
	tim := f.connect(t, "conn-tim", "u1")

	require.NoError(t, f.chat.StartChat(context.Background(), tim, models.StartChatRequest{
		TargetUserID: "u2", ChatID: "c1", Message: "hi", MessageTime: 5,
	}))

	evs := tim.Events()
	require.Len(t, evs, 1)
	p := evs[0].Data.(models.ChatStartedPayload)
	assert.False(t, p.NewChatHeader.IsOtherUserConnected)
	assert.Equal(t, "hi", p.NewChatHeader.LastMessageHeader)
	assert.Equal(t, 1, f.registry.RoomSize("c1"))
}

func TestStartChat_Rejections(t *testing.T) {
	f := newFixture(t)
	tim, alice := startTimAlice(t, f)
	tim.Reset()
	alice.Reset()
	ctx := context.Background()

	err := f.chat.StartChat(ctx, tim, models.StartChatRequest{TargetUserID: "u2", ChatID: "c2", Message: "again", MessageTime: 2000})
	assert.ErrorIs(t, err, common.ErrChatExists)

	err = f.chat.StartChat(ctx, tim, models.StartChatRequest{TargetUserID: "u1", ChatID: "c3", Message: "me", MessageTime: 2000})
	assert.ErrorIs(t, err, common.ErrValidation)

	err = f.chat.StartChat(ctx, tim, models.StartChatRequest{TargetUserID: "u9", ChatID: "c4", Message: "who", MessageTime: 2000})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	err = f.chat.StartChat(ctx, tim, models.StartChatRequest{TargetUserID: "u2", Message: "no id", MessageTime: 2000})
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Empty(t, tim.Events())
	assert.Empty(t, alice.Events())
	assert.Equal(t, 1, f.store.Calls(memory.OpAppendMessage))
}

func TestSendMessage_DeliversToCounterpart(t *testing.T) {
	f := newFixture(t)
	tim, alice := startTimAlice(t, f)
	tim.Reset()
	alice.Reset()
	ctx := context.Background()

	err := f.chat.SendMessage(ctx, alice, models.NewMessageRequest{
		ChatID:      "c1",
		OtherUserID: "spoofed",
		Message:     models.Message{Text: "hey tim", IsUserA: true, Time: 2000},
	})
	require.NoError(t, err)

	want := []models.Event{models.NewMessageEvent("c1", models.Message{Text: "hey tim", IsUserA: false, Time: 2000})}
	if diff := cmp.Diff(want, tim.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, alice.Events())

	l1, err := f.store.ChatLinks().Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), l1.LastMessageTime)
	assert.Equal(t, 1, l1.UnseenMessages)

	l2, err := f.store.ChatLinks().Get(ctx, "u2", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), l2.LastMessageTime)
	assert.Equal(t, 1, l2.UnseenMessages)
}

func TestSendMessage_SenderWithoutLinkIgnored(t *testing.T) {
	f := newFixture(t)
	tim, alice := startTimAlice(t, f)
	tim.Reset()
	alice.Reset()

	f.addUser(t, "u3", "mallory")
	mallory := f.connect(t, "conn-mallory", "u3")

	err := f.chat.SendMessage(context.Background(), mallory, models.NewMessageRequest{
		ChatID:  "c1",
		Message: models.Message{Text: "intrusion", Time: 3000},
	})
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, tim.Events())
	assert.Empty(t, alice.Events())
	assert.Equal(t, 1, f.store.Calls(memory.OpAppendMessage))
}

func TestSendMessage_CollidingTimesBothStored(t *testing.T) {
	f := newFixture(t)
	tim, alice := startTimAlice(t, f)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, c := range []*fakeConn{tim, alice} {
		wg.Add(1)
		go func(i int, c *fakeConn) {
			defer wg.Done()
			errs[i] = f.chat.SendMessage(ctx, c, models.NewMessageRequest{
				ChatID:  "c1",
				Message: models.Message{Text: c.UserID(), Time: 5000},
			})
		}(i, c)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	msgs, err := f.store.Messages().List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []int64{1000, 5000, 5001}, []int64{msgs[0].Time, msgs[1].Time, msgs[2].Time})
	assert.NotEqual(t, msgs[1].Text, msgs[2].Text)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AppendConflicts))
}

func TestSendMessage_DroppedAfterAttempts(t *testing.T) {
	f := newFixture(t)
	tim, alice := startTimAlice(t, f)
	tim.Reset()
	alice.Reset()
	f.store.Fail(memory.OpAppendMessage, common.ErrMessageTimeTaken, common.ErrMessageTimeTaken)

	err := f.chat.SendMessage(context.Background(), tim, models.NewMessageRequest{
		ChatID:  "c1",
		Message: models.Message{Text: "lost", Time: 7000},
	})
	assert.ErrorIs(t, err, common.ErrMessageDropped)
	assert.Empty(t, alice.Events())
	assert.Equal(t, 1+MaxAppendAttempts, f.store.Calls(memory.OpAppendMessage))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MessagesDropped))
	assert.Zero(t, f.store.Calls(memory.OpUpdateLink))
}

func TestSendMessage_StorageErrorNotRetried(t *testing.T) {
	f := newFixture(t)
	tim, _ := startTimAlice(t, f)
	f.store.Fail(memory.OpAppendMessage, common.StorageError(assert.AnError))

	err := f.chat.SendMessage(context.Background(), tim, models.NewMessageRequest{
		ChatID:  "c1",
		Message: models.Message{Text: "x", Time: 7000},
	})
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.Equal(t, 2, f.store.Calls(memory.OpAppendMessage))
}

func TestSendMessage_LinkUpdateFailureStillDelivers(t *testing.T) {
	f := newFixture(t)
	tim, alice := startTimAlice(t, f)
	alice.Reset()
	f.store.Fail(memory.OpUpdateLink, common.StorageError(assert.AnError))

	err := f.chat.SendMessage(context.Background(), tim, models.NewMessageRequest{
		ChatID:  "c1",
		Message: models.Message{Text: "still here", Time: 8000},
	})
	require.NoError(t, err)
	assert.Len(t, alice.Events(), 1)
}

func TestSeenChat_ResetsUnseen(t *testing.T) {
	f := newFixture(t)
	startTimAlice(t, f)
	ctx := context.Background()

	require.NoError(t, f.chat.SeenChat(ctx, "u2", models.SeenChatRequest{ChatID: "c1", LastMessageTime: 1000}))
	l, err := f.store.ChatLinks().Get(ctx, "u2", "c1")
	require.NoError(t, err)
	assert.Zero(t, l.UnseenMessages)

	assert.ErrorIs(t, f.chat.SeenChat(ctx, "u2", models.SeenChatRequest{ChatID: "nope"}), common.ErrorNotFound)
}

func TestConnectDisconnect_PresenceEvents(t *testing.T) {
	f := newFixture(t)
	tim, alice := startTimAlice(t, f)
	ctx := context.Background()
	f.chat.Disconnect(ctx, alice)
	tim.Reset()

	a1 := f.connect(t, "alice-1", "u2")
	assert.Equal(t, []models.Event{models.UserConnectedEvent("c1")}, tim.Events())
	assert.Empty(t, a1.Events())

	a2 := f.connect(t, "alice-2", "u2")
	assert.Len(t, tim.Events(), 1)
	assert.Equal(t, 3, f.registry.RoomSize("c1"))

	f.chat.Disconnect(ctx, a1)
	assert.Len(t, tim.Events(), 1)
	assert.True(t, f.registry.IsOnline("u2"))

	f.chat.Disconnect(ctx, a2)
	assert.Equal(t, []models.Event{
		models.UserConnectedEvent("c1"),
		models.UserDisconnectedEvent("c1"),
	}, tim.Events())
	assert.False(t, f.registry.IsOnline("u2"))
	assert.Equal(t, 1, f.registry.RoomSize("c1"))
}

func TestDisconnect_LastConnectionNotifiesEveryChat(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "tim")
	f.addUser(t, "u2", "alice")
	timA := f.connect(t, "tim-a", "u1")
	timB := f.connect(t, "tim-b", "u1")
	alice := f.connect(t, "conn-alice", "u2")
	ctx := context.Background()

	require.NoError(t, f.chat.StartChat(ctx, timA, models.StartChatRequest{
		TargetUserID: "u2", ChatID: "c1", Message: "hi", MessageTime: 1000,
	}))
	alice.Reset()

	f.chat.Disconnect(ctx, timA)
	assert.Empty(t, alice.Events())

	f.chat.Disconnect(ctx, timB)
	assert.False(t, f.registry.IsOnline("u1"))
	assert.Equal(t, []models.Event{models.UserDisconnectedEvent("c1")}, alice.Events())
}

func TestDisconnect_ListFailureFallsBackToJoinedRooms(t *testing.T) {
	f := newFixture(t)
	tim, alice := startTimAlice(t, f)
	ctx := context.Background()
	alice.Reset()

	f.store.Fail(memory.OpListLinks, common.StorageError(assert.AnError))
	f.chat.Disconnect(ctx, tim)

	assert.False(t, f.registry.IsOnline("u1"))
	assert.Equal(t, []models.Event{models.UserDisconnectedEvent("c1")}, alice.Events())
}

func TestConnect_ListFailureUnregisters(t *testing.T) {
	f := newFixture(t)
	f.store.Fail(memory.OpListLinks, common.StorageError(assert.AnError))

	err := f.chat.Connect(context.Background(), newFakeConn("c", "u1"))
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.False(t, f.registry.IsOnline("u1"))
}

func TestListChats_NewestFirst(t *testing.T) {
	f := newFixture(t)
	tim, _ := startTimAlice(t, f)
	ctx := context.Background()
	f.addUser(t, "u3", "bob")

	require.NoError(t, f.chat.StartChat(ctx, tim, models.StartChatRequest{
		TargetUserID: "u3", ChatID: "c2", Message: "yo bob", MessageTime: 3000,
	}))

	got, err := f.chat.ListChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].ID)
	assert.False(t, got[0].IsOtherUserConnected)
	assert.Equal(t, "c1", got[1].ID)
	assert.True(t, got[1].IsOtherUserConnected)
	assert.Equal(t, "hello worl...", got[1].LastMessageHeader)
	assert.True(t, got[1].IsAuthorOfLastMessage)
}

func TestListChats_BatchFailureYieldsEmpty(t *testing.T) {
	f := newFixture(t)
	startTimAlice(t, f)
	f.store.Fail(memory.OpBatchGetLast, common.StorageError(assert.AnError))

	got, err := f.chat.ListChats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListChats_SkipsChatsWithoutLastMessage(t *testing.T) {
	f := newFixture(t)
	startTimAlice(t, f)
	ctx := context.Background()
	require.NoError(t, f.store.ChatLinks().Put(ctx, &models.ChatLink{
		UserID: "u1", ChatID: "c-empty", OtherUserID: "u9", OtherUserHandle: "ghost", IsUserA: true, LastMessageTime: 9000,
	}))

	got, err := f.chat.ListChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
}

func TestListChats_NoChats(t *testing.T) {
	f := newFixture(t)
	got, err := f.chat.ListChats(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, f.store.Calls(memory.OpBatchGetLast))
}

func TestGetChat(t *testing.T) {
	f := newFixture(t)
	tim, _ := startTimAlice(t, f)
	ctx := context.Background()
	require.NoError(t, f.chat.SendMessage(ctx, tim, models.NewMessageRequest{
		ChatID: "c1", Message: models.Message{Text: "second", Time: 1500},
	}))

	got, err := f.chat.GetChat(ctx, "u2", "c1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OtherUserID)
	assert.Equal(t, "tim", got.OtherUserHandle)
	assert.False(t, got.IsUserA)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hello world!", got.Messages[0].Text)
	assert.Equal(t, "second", got.Messages[1].Text)

	l, err := f.store.ChatLinks().Get(ctx, "u2", "c1")
	require.NoError(t, err)
	assert.Zero(t, l.UnseenMessages)

	resets := f.store.Calls(memory.OpResetUnseen)
	_, err = f.chat.GetChat(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, resets, f.store.Calls(memory.OpResetUnseen))

	_, err = f.chat.GetChat(ctx, "u1", "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSearchHandles(t *testing.T) {
	f := newFixture(t)
	startTimAlice(t, f)
	f.addUser(t, "u3", "timothy")
	ctx := context.Background()

	got, err := f.chat.SearchHandles(ctx, "u2", "TIM")
	require.NoError(t, err)
	assert.Equal(t, []models.UserSearchResult{
		{ID: "u1", Handle: "tim", Connected: true, ExistingChatID: "c1"},
		{ID: "u3", Handle: "timothy"},
	}, got)

	got, err = f.chat.SearchHandles(ctx, "u1", "tim")
	require.NoError(t, err)
	assert.Equal(t, []models.UserSearchResult{{ID: "u3", Handle: "timothy"}}, got)

	_, err = f.chat.SearchHandles(ctx, "u1", strings.Repeat("a", MaxHandleLength+1))
	assert.ErrorIs(t, err, common.ErrSearchTooLong)

	_, err = f.chat.SearchHandles(ctx, "u1", "  ")
	assert.ErrorIs(t, err, common.ErrValidation)
}
