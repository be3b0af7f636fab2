package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/server/repositories/messages"
)

const (
	messagesPageSize = 100
	// maxUnprocessedRounds bounds how often BatchGetLast re-requests keys that
	// DynamoDB reported as unprocessed.
	maxUnprocessedRounds = 3
)

type MessagesRepository struct {
	api    API
	tables Tables
}

func NewMessagesRepository(api API, tables Tables) *MessagesRepository {
	return &MessagesRepository{api: api, tables: tables}
}

func (r *MessagesRepository) Append(ctx context.Context, m *models.Message) error {
	_, err := r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tables.Messages),
		Item: map[string]types.AttributeValue{
			"chatId":  s(m.ChatID),
			"time":    n(m.Time),
			"text":    s(m.Text),
			"isUserA": b(m.IsUserA),
		},
		ConditionExpression: aws.String("attribute_not_exists(chatId)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return common.ErrMessageTimeTaken
		}
		return common.StorageError(err)
	}
	return nil
}

func (r *MessagesRepository) List(ctx context.Context, chatID string) ([]*models.Message, error) {
	p := dynamodb.NewQueryPaginator(r.api, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tables.Messages),
		KeyConditionExpression:    aws.String("chatId = :chatId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":chatId": s(chatID)},
		ScanIndexForward:          aws.Bool(true),
		Limit:                     aws.Int32(messagesPageSize),
	})

	var result []*models.Message
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, common.StorageError(err)
		}
		for _, item := range page.Items {
			result = append(result, messageFromItem(item))
		}
	}

	return result, nil
}

func (r *MessagesRepository) BatchGetLast(ctx context.Context, keys []models.MessageKey) ([]*models.Message, error) {
	var result []*models.Message

	for _, chunk := range messages.Chunk(keys, messages.BatchChunkSize) {
		req := make([]map[string]types.AttributeValue, 0, len(chunk))
		for _, k := range chunk {
			req = append(req, map[string]types.AttributeValue{"chatId": s(k.ChatID), "time": n(k.Time)})
		}

		for round := 0; len(req) > 0; round++ {
			if round == maxUnprocessedRounds {
				return nil, common.StorageError(fmt.Errorf("%d keys left unprocessed", len(req)))
			}

			out, err := r.api.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					r.tables.Messages: {Keys: req},
				},
			})
			if err != nil {
				return nil, common.StorageError(err)
			}

			for _, item := range out.Responses[r.tables.Messages] {
				result = append(result, messageFromItem(item))
			}

			req = nil
			if un, ok := out.UnprocessedKeys[r.tables.Messages]; ok {
				req = un.Keys
			}
		}
	}

	return result, nil
}

func messageFromItem(item map[string]types.AttributeValue) *models.Message {
	return &models.Message{
		ChatID:  getS(item, "chatId"),
		Text:    getS(item, "text"),
		IsUserA: getB(item, "isUserA"),
		Time:    getN(item, "time"),
	}
}
