package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/models"
)

type UsersRepository struct {
	api    API
	tables Tables
}

func NewUsersRepository(api API, tables Tables) *UsersRepository {
	return &UsersRepository{api: api, tables: tables}
}

func (r *UsersRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tables.Users),
		Key:       map[string]types.AttributeValue{"id": s(id)},
	})
	if err != nil {
		return nil, common.StorageError(err)
	}
	if out.Item == nil {
		return nil, common.ErrorNotFound
	}

	return &models.User{
		ID:     id,
		Handle: getS(out.Item, "handle"),
		Hash:   getS(out.Item, "hash"),
		Email:  getS(out.Item, "email"),
	}, nil
}

func (r *UsersRepository) GetIDByHandle(ctx context.Context, handle string) (string, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tables.Handles),
		Key:       map[string]types.AttributeValue{"handle": s(handle)},
	})
	if err != nil {
		return "", common.StorageError(err)
	}
	if out.Item == nil {
		return "", common.ErrorNotFound
	}

	return getS(out.Item, "userId"), nil
}

func (r *UsersRepository) Store(ctx context.Context, u *models.User) error {
	_, err := r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tables.Users),
		Item: map[string]types.AttributeValue{
			"id":     s(u.ID),
			"handle": s(u.Handle),
			"hash":   s(u.Hash),
			"email":  s(u.Email),
		},
	})
	if err != nil {
		return common.StorageError(err)
	}
	return nil
}

func (r *UsersRepository) StoreHandle(ctx context.Context, handle, userID string) error {
	_, err := r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tables.Handles),
		Item: map[string]types.AttributeValue{
			"handle": s(handle),
			"userId": s(userID),
		},
		ConditionExpression: aws.String("attribute_not_exists(handle)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("%w: %s", common.ErrHandleTaken, handle)
		}
		return common.StorageError(err)
	}
	return nil
}

// SearchHandles scans the handle index. The match runs client-side because
// DynamoDB filter expressions cannot test whether the operand contains the
// attribute.
func (r *UsersRepository) SearchHandles(ctx context.Context, query string) ([]models.HandleMatch, error) {
	p := dynamodb.NewScanPaginator(r.api, &dynamodb.ScanInput{
		TableName: aws.String(r.tables.Handles),
	})

	var result []models.HandleMatch
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, common.StorageError(err)
		}
		for _, item := range page.Items {
			h := getS(item, "handle")
			if strings.Contains(h, query) || strings.Contains(query, h) {
				result = append(result, models.HandleMatch{UserID: getS(item, "userId"), Handle: h})
			}
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Handle < result[j].Handle })
	return result, nil
}
