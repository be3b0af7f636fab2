// Package common defines shared constants and sentinel errors used across
// the chat server and client. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound         = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrMessageTimeTaken   = errors.New("message time already taken")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrMessageDropped = errors.New("message dropped")
	ErrChatExists     = errors.New("chat already exists")

	// Validation errors.
	ErrValidation    = errors.New("validation error")
	ErrHandleTaken   = errors.New("handle already taken")
	ErrSearchTooLong = errors.New("search handle is too long")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// StorageError wraps a backend failure so that it matches
// ErrStorageUnavailable while keeping the driver error in the chain.
func StorageError(err error) error {
	return fmt.Errorf("db error: %w: %w", ErrStorageUnavailable, err)
}
