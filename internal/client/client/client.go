package client

import (
	"context"

	"github.com/timn835/crypto-chat/internal/models"
)

// Client is the query API used by the CLI.
type Client interface {
	Close() error
	Register(ctx context.Context, handle, password, email string) (*Session, error)
	Login(ctx context.Context, handle, password string) (*Session, error)
	Logout()
	Ping(ctx context.Context) error
	ListChats(ctx context.Context) ([]models.ChatPreview, error)
	GetChat(ctx context.Context, chatID string) (*models.ChatDetails, error)
	SearchHandles(ctx context.Context, query string) ([]models.UserSearchResult, error)
}

// Session describes the logged-in user.
type Session struct {
	UserID      string
	Handle      string
	AccessToken string
}
