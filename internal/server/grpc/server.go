// Package grpc exposes the synchronous query surface of the chat server as
// the cryptochat.ChatService gRPC service.
package grpc

import (
	"context"
	"net"

	"github.com/timn835/crypto-chat/internal/logging"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/rpc"
	"github.com/timn835/crypto-chat/internal/server/services"
	"google.golang.org/grpc"
)

// UserService is the account API the server needs.
type UserService interface {
	Register(ctx context.Context, handle, password, email string) (*services.AuthResult, error)
	Login(ctx context.Context, handle, password string) (*services.AuthResult, error)
}

// ChatQueries is the read side of the chat service.
type ChatQueries interface {
	ListChats(ctx context.Context, userID string) ([]models.ChatPreview, error)
	GetChat(ctx context.Context, userID, chatID string) (*models.ChatDetails, error)
	SearchHandles(ctx context.Context, userID, query string) ([]models.UserSearchResult, error)
}

type GRPCServer struct {
	rpc.UnimplementedChatServiceServer
	address   string
	users     UserService
	chats     ChatQueries
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, us UserService, cq ChatQueries, secretKey string) (*GRPCServer, error) {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		users:     us,
		chats:     cq,
		jwtSecret: []byte(secretKey),
	}, nil
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	// registers service
	rpc.RegisterChatServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
