package client

import (
	"context"
	"sync"
	"time"

	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const callTimeout = 12 * time.Second

type GRPCClient struct {
	endpointURL string
	dialOpts    []grpc.DialOption
	conn        *grpc.ClientConn
	client      rpc.ChatServiceClient

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if token := s.AccessToken(); token != "" && !rpc.PublicMethods[method] {
		ctx = withAccessToken(ctx, token)
	}

	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewChatClient connects to endpointURL. Extra dial options are appended to
// the defaults.
func NewChatClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, dialOpts: opts}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewChatServiceClient(conn)

	return nil
}

func (s *GRPCClient) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) setAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

func (s *GRPCClient) mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.NotFound:
		return ErrNotFound
	case codes.InvalidArgument:
		return ErrInvalid
	case codes.AlreadyExists:
		return ErrHandleTaken
	default:
		return err
	}
}

func (s *GRPCClient) Register(ctx context.Context, handle, password, email string) (*Session, error) {

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := s.client.Register(ctx, &rpc.RegisterRequest{Handle: handle, Password: password, Email: email})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.setAccessToken(resp.AccessToken)
	return &Session{UserID: resp.UserID, Handle: resp.Handle, AccessToken: resp.AccessToken}, nil
}

func (s *GRPCClient) Login(ctx context.Context, handle, password string) (*Session, error) {

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := s.client.Login(ctx, &rpc.LoginRequest{Handle: handle, Password: password})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.setAccessToken(resp.AccessToken)
	return &Session{UserID: resp.UserID, Handle: resp.Handle, AccessToken: resp.AccessToken}, nil
}

// Logout forgets the access token.
func (s *GRPCClient) Logout() { s.setAccessToken("") }

func (s *GRPCClient) Ping(ctx context.Context) error {

	resp, err := s.client.Ping(ctx, &rpc.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) ListChats(ctx context.Context) ([]models.ChatPreview, error) {

	resp, err := s.client.ListChats(ctx, &rpc.ListChatsRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Chats, nil
}

func (s *GRPCClient) GetChat(ctx context.Context, chatID string) (*models.ChatDetails, error) {

	resp, err := s.client.GetChat(ctx, &rpc.GetChatRequest{ChatID: chatID})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Chat, nil
}

func (s *GRPCClient) SearchHandles(ctx context.Context, query string) ([]models.UserSearchResult, error) {

	resp, err := s.client.SearchHandles(ctx, &rpc.SearchHandlesRequest{Query: query})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Users, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}
