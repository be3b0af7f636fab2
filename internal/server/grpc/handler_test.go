package grpc

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/logging"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/rpc"
	"github.com/timn835/crypto-chat/internal/server/auth"
	"github.com/timn835/crypto-chat/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// ---- fakes ----

type fakeUsers struct {
	regResp *services.AuthResult
	regErr  error

	loginResp *services.AuthResult
	loginErr  error
}

func (f *fakeUsers) Register(ctx context.Context, handle, password, email string) (*services.AuthResult, error) {
	return f.regResp, f.regErr
}
func (f *fakeUsers) Login(ctx context.Context, handle, password string) (*services.AuthResult, error) {
	return f.loginResp, f.loginErr
}

type fakeChats struct {
	lastUserID string

	list    []models.ChatPreview
	listErr error

	chat    *models.ChatDetails
	chatErr error

	found     []models.UserSearchResult
	searchErr error
}

func (f *fakeChats) ListChats(ctx context.Context, userID string) ([]models.ChatPreview, error) {
	f.lastUserID = userID
	return f.list, f.listErr
}
func (f *fakeChats) GetChat(ctx context.Context, userID, chatID string) (*models.ChatDetails, error) {
	f.lastUserID = userID
	return f.chat, f.chatErr
}
func (f *fakeChats) SearchHandles(ctx context.Context, userID, query string) ([]models.UserSearchResult, error) {
	f.lastUserID = userID
	return f.found, f.searchErr
}

// ---- bufconn harness ----

func startBufServer(t *testing.T, us UserService, cq ChatQueries) rpc.ChatServiceClient {
	t.Helper()

	srv, err := NewGRPCServer("bufnet", logging.NopLogger{}, us, cq, "secret")
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return rpc.NewChatServiceClient(conn)
}

func authed(t *testing.T, userID string) context.Context {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte("secret"), time.Minute)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return metadata.AppendToOutgoingContext(ctx, "access_token", tok)
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	users := &fakeUsers{
		regResp:   &services.AuthResult{UserID: "u1", Handle: "tim", AccessToken: "t1"},
		loginResp: &services.AuthResult{UserID: "u1", Handle: "tim", AccessToken: "t2"},
	}
	c := startBufServer(t, users, &fakeChats{})
	ctx := context.Background()

	resp, err := c.Register(ctx, &rpc.RegisterRequest{Handle: "tim", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, &rpc.AuthResponse{UserID: "u1", Handle: "tim", AccessToken: "t1"}, resp)

	resp, err = c.Login(ctx, &rpc.LoginRequest{Handle: "tim", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "t2", resp.AccessToken)

	pong, err := c.Ping(ctx, &rpc.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "OK", pong.Status)
}

func TestHandler_RegisterErrors(t *testing.T) {
	users := &fakeUsers{regErr: common.ErrHandleTaken, loginErr: common.ErrorUnauthorized}
	c := startBufServer(t, users, &fakeChats{})
	ctx := context.Background()

	_, err := c.Register(ctx, &rpc.RegisterRequest{Handle: "tim", Password: "pw"})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = c.Login(ctx, &rpc.LoginRequest{Handle: "tim", Password: "pw"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestHandler_ListChats(t *testing.T) {
	chats := &fakeChats{list: []models.ChatPreview{{ID: "c2"}, {ID: "c1"}}}
	c := startBufServer(t, &fakeUsers{}, chats)

	resp, err := c.ListChats(authed(t, "u7"), &rpc.ListChatsRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Chats, 2)
	assert.Equal(t, "c2", resp.Chats[0].ID)
	assert.Equal(t, "u7", chats.lastUserID)

	_, err = c.ListChats(context.Background(), &rpc.ListChatsRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestHandler_GetChat(t *testing.T) {
	chats := &fakeChats{chat: &models.ChatDetails{
		OtherUserID:     "u2",
		OtherUserHandle: "alice",
		Messages:        []*models.Message{{Text: "hi", IsUserA: true, Time: 1}},
	}}
	c := startBufServer(t, &fakeUsers{}, chats)

	resp, err := c.GetChat(authed(t, "u1"), &rpc.GetChatRequest{ChatID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.Chat.OtherUserHandle)
	require.Len(t, resp.Chat.Messages, 1)
	assert.Equal(t, "hi", resp.Chat.Messages[0].Text)

	chats.chat, chats.chatErr = nil, fmt.Errorf("wrapped: %w", common.ErrorNotFound)
	_, err = c.GetChat(authed(t, "u1"), &rpc.GetChatRequest{ChatID: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHandler_SearchHandles(t *testing.T) {
	chats := &fakeChats{found: []models.UserSearchResult{{ID: "u2", Handle: "alice", Connected: true, ExistingChatID: "c1"}}}
	c := startBufServer(t, &fakeUsers{}, chats)

	resp, err := c.SearchHandles(authed(t, "u1"), &rpc.SearchHandlesRequest{Query: "ali"})
	require.NoError(t, err)
	assert.Equal(t, chats.found, resp.Users)

	chats.found, chats.searchErr = nil, common.ErrSearchTooLong
	_, err = c.SearchHandles(authed(t, "u1"), &rpc.SearchHandlesRequest{Query: "aaaaaaaaaaaaaaaaaaaaaaaaa"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{common.ErrorNotFound, codes.NotFound},
		{common.ErrorUnauthorized, codes.Unauthenticated},
		{fmt.Errorf("%w: bad", common.ErrValidation), codes.InvalidArgument},
		{common.ErrSearchTooLong, codes.InvalidArgument},
		{common.ErrHandleTaken, codes.AlreadyExists},
		{common.StorageError(assert.AnError), codes.Internal},
		{common.ErrorInternal, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
}
