package table

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Koba-gh/bedrock-json-cdk/internal/awsenv"
	"github.com/Koba-gh/bedrock-json-cdk/internal/testutil"
)

func TestDynamoStore_DynamoDBLocal(t *testing.T) {
	testutil.RequireDocker(t)

	endpoint := testutil.StartDynamoDBLocal(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, err := awsenv.LoadConfig(ctx, awsenv.Options{
		Region:          "us-east-1",
		AccessKeyID:     "local",
		SecretAccessKey: "local",
	})
	require.NoError(t, err)
	client := awsenv.NewDynamoDB(cfg, endpoint)

	_, err = client.CreateTable(ctx, CreateTableInput("pc-specs"))
	require.NoError(t, err)

	store := NewDynamoStore(client, "pc-specs")
	item := gamingBeast()
	require.NoError(t, store.Put(ctx, item))

	item.StorageGB = 4000
	require.NoError(t, store.Put(ctx, item), "second put on the same key must overwrite")

	scan, err := client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String("pc-specs")})
	require.NoError(t, err)
	require.Equal(t, int32(1), scan.Count, "same key must stay one row")

	got, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String("pc-specs"),
		Key: map[string]types.AttributeValue{
			KeyAttribute: &types.AttributeValueMemberS{Value: item.Name},
		},
	})
	require.NoError(t, err)

	var stored Item
	require.NoError(t, attributevalue.UnmarshalMap(got.Item, &stored))
	assert.Equal(t, item.Record.PCName, stored.PCName)
	assert.Equal(t, 4000.0, stored.StorageGB)
	assert.True(t, stored.ExtractedAt.Equal(extractedAt))
}
