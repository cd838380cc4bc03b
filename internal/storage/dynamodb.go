package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the DynamoDB client the store calls.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type dynamoItem struct {
	Key   string `dynamodbav:"key"`
	Value string `dynamodbav:"value"`
}

// DynamoDB stores each key as one item in a table whose partition key is "key".
type DynamoDB struct {
	client    DynamoDBAPI
	tableName string
}

// NewDynamoDB returns a store writing to tableName.
func NewDynamoDB(client DynamoDBAPI, tableName string) *DynamoDB {
	return &DynamoDB{client: client, tableName: tableName}
}

func (d *DynamoDB) Store(ctx context.Context, key, value string) error {
	item, err := attributevalue.MarshalMap(dynamoItem{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("marshal dynamodb item: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb store %s: %w", key, err)
	}
	return nil
}

func (d *DynamoDB) Load(ctx context.Context, key string) (string, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]dynamodbtypes.AttributeValue{
			"key": &dynamodbtypes.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("dynamodb load %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return "", nil
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", fmt.Errorf("unmarshal dynamodb item: %w", err)
	}
	return item.Value, nil
}

// Close is a no-op; the SDK client holds no connections to release.
func (d *DynamoDB) Close() error { return nil }
