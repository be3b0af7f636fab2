package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "cryptochat.ChatService"

const (
	ChatService_Register_FullMethodName      = "/cryptochat.ChatService/Register"
	ChatService_Login_FullMethodName         = "/cryptochat.ChatService/Login"
	ChatService_ListChats_FullMethodName     = "/cryptochat.ChatService/ListChats"
	ChatService_GetChat_FullMethodName       = "/cryptochat.ChatService/GetChat"
	ChatService_SearchHandles_FullMethodName = "/cryptochat.ChatService/SearchHandles"
	ChatService_Ping_FullMethodName          = "/cryptochat.ChatService/Ping"
)

// PublicMethods can be called without an access token.
var PublicMethods = map[string]bool{
	ChatService_Register_FullMethodName: true,
	ChatService_Login_FullMethodName:    true,
	ChatService_Ping_FullMethodName:     true,
}

// ChatServiceServer is the server API for cryptochat.ChatService.
type ChatServiceServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error)
	GetChat(context.Context, *GetChatRequest) (*GetChatResponse, error)
	SearchHandles(context.Context, *SearchHandlesRequest) (*SearchHandlesResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

// UnimplementedChatServiceServer can be embedded to satisfy ChatServiceServer.
type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) Register(context.Context, *RegisterRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedChatServiceServer) Login(context.Context, *LoginRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedChatServiceServer) ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListChats not implemented")
}
func (UnimplementedChatServiceServer) GetChat(context.Context, *GetChatRequest) (*GetChatResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetChat not implemented")
}
func (UnimplementedChatServiceServer) SearchHandles(context.Context, *SearchHandlesRequest) (*SearchHandlesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SearchHandles not implemented")
}
func (UnimplementedChatServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodHandler, running it
// through the server's interceptor chain.
func unaryHandler[Req any](fullMethod string, call func(ChatServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ChatServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ChatServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Register",
			Handler: unaryHandler(ChatService_Register_FullMethodName, func(s ChatServiceServer, ctx context.Context, in *RegisterRequest) (any, error) {
				return s.Register(ctx, in)
			}),
		},
		{
			MethodName: "Login",
			Handler: unaryHandler(ChatService_Login_FullMethodName, func(s ChatServiceServer, ctx context.Context, in *LoginRequest) (any, error) {
				return s.Login(ctx, in)
			}),
		},
		{
			MethodName: "ListChats",
			Handler: unaryHandler(ChatService_ListChats_FullMethodName, func(s ChatServiceServer, ctx context.Context, in *ListChatsRequest) (any, error) {
				return s.ListChats(ctx, in)
			}),
		},
		{
			MethodName: "GetChat",
			Handler: unaryHandler(ChatService_GetChat_FullMethodName, func(s ChatServiceServer, ctx context.Context, in *GetChatRequest) (any, error) {
				return s.GetChat(ctx, in)
			}),
		},
		{
			MethodName: "SearchHandles",
			Handler: unaryHandler(ChatService_SearchHandles_FullMethodName, func(s ChatServiceServer, ctx context.Context, in *SearchHandlesRequest) (any, error) {
				return s.SearchHandles(ctx, in)
			}),
		},
		{
			MethodName: "Ping",
			Handler: unaryHandler(ChatService_Ping_FullMethodName, func(s ChatServiceServer, ctx context.Context, in *PingRequest) (any, error) {
				return s.Ping(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cryptochat/chat_service",
}

// ChatServiceClient is the client API for cryptochat.ChatService.
type ChatServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	ListChats(ctx context.Context, in *ListChatsRequest, opts ...grpc.CallOption) (*ListChatsResponse, error)
	GetChat(ctx context.Context, in *GetChatRequest, opts ...grpc.CallOption) (*GetChatResponse, error)
	SearchHandles(ctx context.Context, in *SearchHandlesRequest, opts ...grpc.CallOption) (*SearchHandlesResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewChatServiceClient returns a client whose calls use the JSON codec.
func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, ChatService_Register_FullMethodName, in, opts)
}

func (c *chatServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, ChatService_Login_FullMethodName, in, opts)
}

func (c *chatServiceClient) ListChats(ctx context.Context, in *ListChatsRequest, opts ...grpc.CallOption) (*ListChatsResponse, error) {
	return invoke[ListChatsResponse](ctx, c.cc, ChatService_ListChats_FullMethodName, in, opts)
}

func (c *chatServiceClient) GetChat(ctx context.Context, in *GetChatRequest, opts ...grpc.CallOption) (*GetChatResponse, error) {
	return invoke[GetChatResponse](ctx, c.cc, ChatService_GetChat_FullMethodName, in, opts)
}

func (c *chatServiceClient) SearchHandles(ctx context.Context, in *SearchHandlesRequest, opts ...grpc.CallOption) (*SearchHandlesResponse, error) {
	return invoke[SearchHandlesResponse](ctx, c.cc, ChatService_SearchHandles_FullMethodName, in, opts)
}

func (c *chatServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, ChatService_Ping_FullMethodName, in, opts)
}
