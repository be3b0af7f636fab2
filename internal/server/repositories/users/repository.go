// Package users stores accounts and the handle index that maps lower-cased
// handles to user ids.
package users

import (
	"context"

	"github.com/timn835/crypto-chat/internal/models"
)

// Repository is the account side of the storage adapter. Store and
// StoreHandle are independent writes; callers decide their order.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetIDByHandle(ctx context.Context, handle string) (string, error)
	Store(ctx context.Context, user *models.User) error
	StoreHandle(ctx context.Context, handle, userID string) error
	SearchHandles(ctx context.Context, query string) ([]models.HandleMatch, error)
}
