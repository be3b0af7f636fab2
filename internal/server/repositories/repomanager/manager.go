// Package repomanager bundles the users, chat links and messages
// repositories of one storage backend and owns that backend's lifecycle.
package repomanager

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/timn835/crypto-chat/internal/logging"
	"github.com/timn835/crypto-chat/internal/server/config"
	"github.com/timn835/crypto-chat/internal/server/repositories/chatlinks"
	"github.com/timn835/crypto-chat/internal/server/repositories/messages"
	"github.com/timn835/crypto-chat/internal/server/repositories/usercache"
	"github.com/timn835/crypto-chat/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	ChatLinks() chatlinks.Repository
	Messages() messages.Repository
	Close() error
}

var (
	newPostgres = func(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
		return NewPostgresRepositoryManager(cfg.DatabaseDSN)
	}
	newDynamo = func(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
		return NewDynamoRepositoryManager(ctx, cfg)
	}
)

// New opens the backend selected by cfg.StorageBackend. When cfg.RedisAddr
// is set, user lookups go through a Redis read-through cache.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (RepositoryManager, error) {
	var (
		m   RepositoryManager
		err error
	)

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		m, err = newPostgres(ctx, cfg)
	case config.BackendDynamoDB:
		m, err = newDynamo(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s init error: %w", cfg.StorageBackend, err)
	}

	if cfg.RedisAddr == "" {
		return m, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return &cachedManager{
		RepositoryManager: m,
		redis:             client,
		users:             usercache.New(m.Users(), client, cfg.UserCacheTTL, logger),
	}, nil
}

type cachedManager struct {
	RepositoryManager
	redis *redis.Client
	users users.Repository
}

func (m *cachedManager) Users() users.Repository { return m.users }

func (m *cachedManager) Close() error {
	rErr := m.redis.Close()
	if err := m.RepositoryManager.Close(); err != nil {
		return err
	}
	return rErr
}
