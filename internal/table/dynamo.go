package table

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PutItemAPI is the subset of the DynamoDB client used here.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore writes items to a DynamoDB table keyed by "name".
type DynamoStore struct {
	client PutItemAPI
	table  string
}

// NewDynamoStore wraps a DynamoDB client.
func NewDynamoStore(client PutItemAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, table: tableName}
}

// Put writes the item with a single PutItem, overwriting any existing row.
func (s *DynamoStore) Put(ctx context.Context, item Item) error {
	if item.Name == "" {
		return ErrEmptyKey
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item %s: %w", item.Name, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put item %s into %s: %w", item.Name, s.table, err)
	}
	return nil
}

// CreateTableInput describes the table this store writes to. Used for local
// development against DynamoDB Local.
func CreateTableInput(tableName string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(KeyAttribute), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(KeyAttribute), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}
