// Package chatlinks stores the per-user summary row of every conversation.
package chatlinks

import (
	"context"

	"github.com/timn835/crypto-chat/internal/models"
)

// Repository manages chat links. Update and ResetUnseen never create rows;
// they report common.ErrorNotFound when the link is missing.
type Repository interface {
	// List returns every link of userID, reading all pages.
	List(ctx context.Context, userID string) ([]*models.ChatLink, error)
	Get(ctx context.Context, userID, chatID string) (*models.ChatLink, error)
	// Put overwrites the link unconditionally.
	Put(ctx context.Context, link *models.ChatLink) error
	Update(ctx context.Context, userID, chatID string, lastMessageTime int64, unseenDelta int) error
	ResetUnseen(ctx context.Context, userID, chatID string) error
}
