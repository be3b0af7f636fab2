package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// fakeAPI is a tiny in-memory DynamoDB that understands exactly the
// expressions issued by this package.
type fakeAPI struct {
	mu       sync.Mutex
	keys     map[string][]string // table -> hash[, range]
	items    map[string][]item
	pageSize int32
	err      error
	// unprocessedOnce makes the first BatchGetItem call report every key
	// after the first as unprocessed.
	unprocessedOnce bool
	batchCalls      int
	created         []string
}

func newFakeAPI(t Tables) *fakeAPI {
	return &fakeAPI{
		keys: map[string][]string{
			t.Users:      {"id"},
			t.Handles:    {"handle"},
			t.UsersChats: {"userId", "chatId"},
			t.Messages:   {"chatId", "time"},
		},
		items:    map[string][]item{},
		pageSize: 2,
	}
}

func attrString(v types.AttributeValue) string {
	switch x := v.(type) {
	case *types.AttributeValueMemberS:
		return x.Value
	case *types.AttributeValueMemberN:
		return x.Value
	case *types.AttributeValueMemberBOOL:
		return fmt.Sprint(x.Value)
	}
	return ""
}

func (f *fakeAPI) find(table string, key item) int {
	for i, it := range f.items[table] {
		match := true
		for _, k := range f.keys[table] {
			if attrString(it[k]) != attrString(key[k]) {
				match = false
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if i := f.find(*in.TableName, in.Key); i >= 0 {
		return &dynamodb.GetItemOutput{Item: f.items[*in.TableName][i]}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	table := *in.TableName
	i := f.find(table, in.Item)
	if i >= 0 {
		if in.ConditionExpression != nil && strings.HasPrefix(*in.ConditionExpression, "attribute_not_exists") {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
		f.items[table][i] = in.Item
		return &dynamodb.PutItemOutput{}, nil
	}
	f.items[table] = append(f.items[table], in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	table := *in.TableName
	i := f.find(table, in.Key)
	if i < 0 {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
	}
	it := f.items[table][i]
	vals := in.ExpressionAttributeValues
	switch {
	case strings.Contains(*in.UpdateExpression, "ADD unseenMessages :d"):
		var cur, d int64
		fmt.Sscan(attrString(it["unseenMessages"]), &cur)
		fmt.Sscan(attrString(vals[":d"]), &d)
		it["lastMessageTime"] = vals[":t"]
		it["unseenMessages"] = n(cur + d)
	case strings.Contains(*in.UpdateExpression, "SET unseenMessages = :zero"):
		it["unseenMessages"] = vals[":zero"]
	default:
		return nil, fmt.Errorf("unsupported update %q", *in.UpdateExpression)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeAPI) page(table string, items []item, start item, limit *int32) ([]item, item) {
	from := 0
	if start != nil {
		for i, it := range items {
			if f.sameKey(table, it, start) {
				from = i + 1
			}
		}
	}
	size := f.pageSize
	if limit != nil && *limit < size {
		size = *limit
	}
	to := from + int(size)
	if to >= len(items) {
		return items[from:], nil
	}
	last := item{}
	for _, k := range f.keys[table] {
		last[k] = items[to-1][k]
	}
	return items[from:to], last
}

func (f *fakeAPI) sameKey(table string, a, b item) bool {
	for _, k := range f.keys[table] {
		if attrString(a[k]) != attrString(b[k]) {
			return false
		}
	}
	return true
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	table := *in.TableName
	hashKey := f.keys[table][0]
	var want string
	for _, v := range in.ExpressionAttributeValues {
		want = attrString(v)
	}

	var matched []item
	for _, it := range f.items[table] {
		if attrString(it[hashKey]) == want {
			matched = append(matched, it)
		}
	}
	rangeKey := f.keys[table][1]
	sort.Slice(matched, func(i, j int) bool {
		if _, ok := matched[i][rangeKey].(*types.AttributeValueMemberN); ok {
			return getN(matched[i], rangeKey) < getN(matched[j], rangeKey)
		}
		return getS(matched[i], rangeKey) < getS(matched[j], rangeKey)
	})

	items, last := f.page(table, matched, in.ExclusiveStartKey, in.Limit)
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: last}, nil
}

func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	table := *in.TableName
	items, last := f.page(table, f.items[table], in.ExclusiveStartKey, in.Limit)
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: last}, nil
}

func (f *fakeAPI) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := &dynamodb.BatchGetItemOutput{
		Responses:       map[string][]item{},
		UnprocessedKeys: map[string]types.KeysAndAttributes{},
	}
	for table, ka := range in.RequestItems {
		if len(ka.Keys) > 100 {
			return nil, fmt.Errorf("too many keys: %d", len(ka.Keys))
		}
		keys := ka.Keys
		if f.unprocessedOnce && len(keys) > 1 {
			f.unprocessedOnce = false
			out.UnprocessedKeys[table] = types.KeysAndAttributes{Keys: keys[1:]}
			keys = keys[:1]
		}
		for _, k := range keys {
			if i := f.find(table, k); i >= 0 {
				out.Responses[table] = append(out.Responses[table], f.items[table][i])
			}
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.created {
		if c == *in.TableName {
			return nil, &types.ResourceInUseException{Message: aws.String("exists")}
		}
	}
	f.created = append(f.created, *in.TableName)
	return &dynamodb.CreateTableOutput{}, nil
}
