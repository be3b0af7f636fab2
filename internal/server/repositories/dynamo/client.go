// Package dynamo implements the users, chat links and messages repositories
// on Amazon DynamoDB. Table and attribute names follow the layout
// <prefix>users, <prefix>handles, <prefix>users_chats and <prefix>messages.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newDynamoClientFromConfig = func(cfg aws.Config, optFns ...func(*dynamodb.Options)) *dynamodb.Client {
		return dynamodb.NewFromConfig(cfg, optFns...)
	}
)

// API is the subset of *dynamodb.Client used by the repositories.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Options configures the DynamoDB client.
type Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewClient builds a DynamoDB client. Static credentials are used when an
// access key is given, otherwise the default AWS credential chain applies.
// Endpoint overrides the service URL, e.g. for DynamoDB Local.
func NewClient(ctx context.Context, o Options) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return newDynamoClientFromConfig(cfg, func(do *dynamodb.Options) {
		if o.Endpoint != "" {
			do.BaseEndpoint = aws.String(o.Endpoint)
		}
	}), nil
}

// Tables holds the resolved table names.
type Tables struct {
	Users      string
	Handles    string
	UsersChats string
	Messages   string
}

func NewTables(prefix string) Tables {
	return Tables{
		Users:      prefix + "users",
		Handles:    prefix + "handles",
		UsersChats: prefix + "users_chats",
		Messages:   prefix + "messages",
	}
}

type keyAttr struct {
	name string
	typ  types.ScalarAttributeType
}

// EnsureTables creates any missing table with on-demand billing. Tables that
// already exist are left untouched.
func EnsureTables(ctx context.Context, api API, t Tables) error {
	schemas := []struct {
		table string
		hash  keyAttr
		rang  *keyAttr
	}{
		{t.Users, keyAttr{"id", types.ScalarAttributeTypeS}, nil},
		{t.Handles, keyAttr{"handle", types.ScalarAttributeTypeS}, nil},
		{t.UsersChats, keyAttr{"userId", types.ScalarAttributeTypeS}, &keyAttr{"chatId", types.ScalarAttributeTypeS}},
		{t.Messages, keyAttr{"chatId", types.ScalarAttributeTypeS}, &keyAttr{"time", types.ScalarAttributeTypeN}},
	}

	for _, sc := range schemas {
		in := &dynamodb.CreateTableInput{
			TableName:   aws.String(sc.table),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(sc.hash.name), AttributeType: sc.hash.typ},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(sc.hash.name), KeyType: types.KeyTypeHash},
			},
		}
		if sc.rang != nil {
			in.AttributeDefinitions = append(in.AttributeDefinitions,
				types.AttributeDefinition{AttributeName: aws.String(sc.rang.name), AttributeType: sc.rang.typ})
			in.KeySchema = append(in.KeySchema,
				types.KeySchemaElement{AttributeName: aws.String(sc.rang.name), KeyType: types.KeyTypeRange})
		}

		if _, err := api.CreateTable(ctx, in); err != nil {
			var inUse *types.ResourceInUseException
			if errors.As(err, &inUse) {
				continue
			}
			return fmt.Errorf("create table %s: %w", sc.table, err)
		}
	}

	return nil
}
