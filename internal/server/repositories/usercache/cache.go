// Package usercache is a read-through Redis cache in front of a
// users.Repository. Users and handle claims never change after signup, so
// entries are only ever written, never invalidated. Password hashes are never
// cached: users returned by GetByID carry an empty Hash, and credential checks
// go through Backing.
package usercache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/timn835/crypto-chat/internal/logging"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/server/repositories/users"
)

const (
	userKeyPrefix   = "chat:user:"
	handleKeyPrefix = "chat:handle:"
)

type Repository struct {
	users.Repository
	cache  *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// New wraps next. Cache failures are logged and the call falls through to
// next.
func New(next users.Repository, cache *redis.Client, ttl time.Duration, logger logging.Logger) *Repository {
	return &Repository{Repository: next, cache: cache, ttl: ttl, logger: logger.With("module", "usercache")}
}

type cachedUser struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Email  string `json:"email"`
}

func (c cachedUser) user() *models.User {
	return &models.User{ID: c.ID, Handle: c.Handle, Email: c.Email}
}

// Backing returns the wrapped repository.
func (r *Repository) Backing() users.Repository { return r.Repository }

func (r *Repository) GetByID(ctx context.Context, id string) (*models.User, error) {
	key := userKeyPrefix + id
	if data, err := r.cache.Get(ctx, key).Bytes(); err == nil {
		var c cachedUser
		if uErr := json.Unmarshal(data, &c); uErr == nil {
			return c.user(), nil
		}
	} else if err != redis.Nil {
		r.logger.Warn(ctx, "user cache read failed", "error", err)
	}

	u, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c := cachedUser{ID: u.ID, Handle: u.Handle, Email: u.Email}
	if payload, err := json.Marshal(c); err == nil {
		if err := r.cache.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			r.logger.Warn(ctx, "user cache write failed", "error", err)
		}
	}
	return c.user(), nil
}

func (r *Repository) GetIDByHandle(ctx context.Context, handle string) (string, error) {
	key := handleKeyPrefix + handle
	id, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		return id, nil
	}
	if err != redis.Nil {
		r.logger.Warn(ctx, "handle cache read failed", "error", err)
	}

	id, err = r.Repository.GetIDByHandle(ctx, handle)
	if err != nil {
		return "", err
	}

	if err := r.cache.Set(ctx, key, id, r.ttl).Err(); err != nil {
		r.logger.Warn(ctx, "handle cache write failed", "error", err)
	}
	return id, nil
}
