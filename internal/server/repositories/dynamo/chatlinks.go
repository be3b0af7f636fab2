package dynamo

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/models"
)

const linksPageSize = 1000

type ChatLinksRepository struct {
	api    API
	tables Tables
}

func NewChatLinksRepository(api API, tables Tables) *ChatLinksRepository {
	return &ChatLinksRepository{api: api, tables: tables}
}

func (r *ChatLinksRepository) List(ctx context.Context, userID string) ([]*models.ChatLink, error) {
	p := dynamodb.NewQueryPaginator(r.api, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tables.UsersChats),
		KeyConditionExpression:    aws.String("userId = :userId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":userId": s(userID)},
		Limit:                     aws.Int32(linksPageSize),
	})

	var result []*models.ChatLink
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, common.StorageError(err)
		}
		for _, item := range page.Items {
			result = append(result, linkFromItem(item))
		}
	}

	return result, nil
}

func (r *ChatLinksRepository) Get(ctx context.Context, userID, chatID string) (*models.ChatLink, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tables.UsersChats),
		Key:       linkKey(userID, chatID),
	})
	if err != nil {
		return nil, common.StorageError(err)
	}
	if out.Item == nil {
		return nil, common.ErrorNotFound
	}
	return linkFromItem(out.Item), nil
}

func (r *ChatLinksRepository) Put(ctx context.Context, l *models.ChatLink) error {
	_, err := r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tables.UsersChats),
		Item: map[string]types.AttributeValue{
			"userId":          s(l.UserID),
			"chatId":          s(l.ChatID),
			"otherUserId":     s(l.OtherUserID),
			"otherUserHandle": s(l.OtherUserHandle),
			"isUserA":         b(l.IsUserA),
			"lastMessageTime": n(l.LastMessageTime),
			"unseenMessages":  n(int64(l.UnseenMessages)),
		},
	})
	if err != nil {
		return common.StorageError(err)
	}
	return nil
}

func (r *ChatLinksRepository) Update(ctx context.Context, userID, chatID string, lastMessageTime int64, unseenDelta int) error {
	_, err := r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tables.UsersChats),
		Key:                 linkKey(userID, chatID),
		UpdateExpression:    aws.String("SET lastMessageTime = :t ADD unseenMessages :d"),
		ConditionExpression: aws.String("attribute_exists(chatId)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": n(lastMessageTime),
			":d": &types.AttributeValueMemberN{Value: strconv.Itoa(unseenDelta)},
		},
	})
	return updateError(err)
}

func (r *ChatLinksRepository) ResetUnseen(ctx context.Context, userID, chatID string) error {
	_, err := r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tables.UsersChats),
		Key:                       linkKey(userID, chatID),
		UpdateExpression:          aws.String("SET unseenMessages = :zero"),
		ConditionExpression:       aws.String("attribute_exists(chatId)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":zero": n(0)},
	})
	return updateError(err)
}

func updateError(err error) error {
	if err == nil {
		return nil
	}
	if isConditionFailed(err) {
		return common.ErrorNotFound
	}
	return common.StorageError(err)
}

func linkKey(userID, chatID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"userId": s(userID), "chatId": s(chatID)}
}

func linkFromItem(item map[string]types.AttributeValue) *models.ChatLink {
	return &models.ChatLink{
		UserID:          getS(item, "userId"),
		ChatID:          getS(item, "chatId"),
		OtherUserID:     getS(item, "otherUserId"),
		OtherUserHandle: getS(item, "otherUserHandle"),
		IsUserA:         getB(item, "isUserA"),
		LastMessageTime: getN(item, "lastMessageTime"),
		UnseenMessages:  int(getN(item, "unseenMessages")),
	}
}
