// Package client contains the client-side transports of crypto-chat.
//
// # Overview
//
//  1. GRPCClient talks to the cryptochat.ChatService query API. It injects
//     the access token through a unary interceptor and maps gRPC status
//     codes to sentinel errors.
//  2. EventStream carries realtime events over the websocket endpoint.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnavailable, ErrUnauthorized, ErrNotFound, ErrInvalid,
// ErrHandleTaken.
package client
