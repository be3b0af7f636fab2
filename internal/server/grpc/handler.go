package grpc

import (
	"context"
	"errors"

	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/rpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.AuthResponse, error) {

	s.logger.Info(ctx, "Registration request", "handle", req.Handle)

	result, err := s.users.Register(ctx, req.Handle, req.Password, req.Email)
	if err != nil {
		s.logger.Error(ctx, "registration failed", "handle", req.Handle, "error", err)
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Registered", "handle", result.Handle, "user_id", result.UserID)
	return &rpc.AuthResponse{UserID: result.UserID, Handle: result.Handle, AccessToken: result.AccessToken}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.AuthResponse, error) {

	result, err := s.users.Login(ctx, req.Handle, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.AuthResponse{UserID: result.UserID, Handle: result.Handle, AccessToken: result.AccessToken}, nil
}

func (s *GRPCServer) ListChats(ctx context.Context, req *rpc.ListChatsRequest) (*rpc.ListChatsResponse, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	chats, err := s.chats.ListChats(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "list chats failed", "user_id", userID, "error", err)
		return nil, toStatus(err)
	}

	return &rpc.ListChatsResponse{Chats: chats}, nil
}

func (s *GRPCServer) GetChat(ctx context.Context, req *rpc.GetChatRequest) (*rpc.GetChatResponse, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	chat, err := s.chats.GetChat(ctx, userID, req.ChatID)
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.GetChatResponse{Chat: *chat}, nil
}

func (s *GRPCServer) SearchHandles(ctx context.Context, req *rpc.SearchHandlesRequest) (*rpc.SearchHandlesResponse, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	found, err := s.chats.SearchHandles(ctx, userID, req.Query)
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.SearchHandlesResponse{Users: found}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {

	return &rpc.PingResponse{Status: "OK"}, nil

}

// toStatus maps service errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrSearchTooLong):
		return status.Error(codes.InvalidArgument, common.ErrSearchTooLong.Error())
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrHandleTaken):
		return status.Error(codes.AlreadyExists, common.ErrHandleTaken.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
