package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBStore implements core.SnapshotStore as a single DynamoDB item.
// Intended for fleet deployments that already standardize on DynamoDB for
// small durable state.
type DynamoDBStore struct {
	client    *dynamodb.Client
	tableName string
	name      string
}

// NewDynamoDBStore creates a DynamoDB-backed snapshot store and verifies
// the table exists. endpoint overrides the AWS endpoint (e.g. LocalStack);
// static credentials are optional and fall back to the default chain.
func NewDynamoDBStore(region, tableName, endpoint, accessKeyID, secretAccessKey, name string) (*DynamoDBStore, error) {
	if region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if tableName == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if name == "" {
		name = "default"
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if accessKeyID != "" && secretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}

	clientOptions := []func(*dynamodb.Options){}
	if endpoint != "" {
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	client := dynamodb.NewFromConfig(cfg, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", tableName, err)
	}

	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
		name:      name,
	}, nil
}

// Save puts the snapshot item, replacing any previous version.
func (d *DynamoDBStore) Save(ctx context.Context, data []byte) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]types.AttributeValue{
			"name":       &types.AttributeValueMemberS{Value: d.name},
			"data":       &types.AttributeValueMemberB{Value: data},
			"updated_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot to DynamoDB: %w", err)
	}
	return nil
}

// Load gets the snapshot item. Returns (nil, nil) when the item is absent.
func (d *DynamoDBStore) Load(ctx context.Context) ([]byte, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: d.name},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot from DynamoDB: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	attr, ok := out.Item["data"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("snapshot item %s has no data attribute", d.name)
	}
	return attr.Value, nil
}

// Close is a no-op; the DynamoDB client holds no persistent connection.
func (d *DynamoDBStore) Close() error {
	return nil
}
