package repomanager

import (
	"context"

	"github.com/timn835/crypto-chat/internal/server/config"
	"github.com/timn835/crypto-chat/internal/server/repositories/chatlinks"
	"github.com/timn835/crypto-chat/internal/server/repositories/dynamo"
	"github.com/timn835/crypto-chat/internal/server/repositories/messages"
	"github.com/timn835/crypto-chat/internal/server/repositories/users"
)

// DynamoRepositoryManager vends DynamoDB-backed repositories.
type DynamoRepositoryManager struct {
	api    dynamo.API
	tables dynamo.Tables
}

var newDynamoClient = func(ctx context.Context, o dynamo.Options) (dynamo.API, error) {
	return dynamo.NewClient(ctx, o)
}

func NewDynamoRepositoryManager(ctx context.Context, cfg *config.Config) (*DynamoRepositoryManager, error) {
	api, err := newDynamoClient(ctx, dynamo.Options{
		Region:    cfg.DynamoRegion,
		Endpoint:  cfg.DynamoEndpoint,
		AccessKey: cfg.DynamoAccessKey,
		SecretKey: cfg.DynamoSecretKey,
	})
	if err != nil {
		return nil, err
	}
	return &DynamoRepositoryManager{api: api, tables: dynamo.NewTables(cfg.DynamoTablePrefix)}, nil
}

func (m *DynamoRepositoryManager) Users() users.Repository {
	return dynamo.NewUsersRepository(m.api, m.tables)
}

func (m *DynamoRepositoryManager) ChatLinks() chatlinks.Repository {
	return dynamo.NewChatLinksRepository(m.api, m.tables)
}

func (m *DynamoRepositoryManager) Messages() messages.Repository {
	return dynamo.NewMessagesRepository(m.api, m.tables)
}

// RunMigrations creates any missing table.
func (m *DynamoRepositoryManager) RunMigrations(ctx context.Context) error {
	return dynamo.EnsureTables(ctx, m.api, m.tables)
}

// Close is a no-op; the AWS client holds no long-lived resources.
func (m *DynamoRepositoryManager) Close() error { return nil }
