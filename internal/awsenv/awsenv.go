// Package awsenv builds AWS SDK configuration and clients. With no endpoint
// or static keys it uses the default credential chain, which is what runs
// inside Lambda.
package awsenv

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options selects region, credentials and per-service endpoint overrides.
type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	S3Endpoint       string
	DynamoDBEndpoint string
	BedrockEndpoint  string
}

// Clients holds the SDK clients used by the pipeline. They are safe for
// concurrent use and are created once per process.
type Clients struct {
	Config   aws.Config
	S3       *s3.Client
	DynamoDB *dynamodb.Client
	Bedrock  *bedrockruntime.Client
}

// LoadConfig loads the shared AWS configuration.
func LoadConfig(ctx context.Context, opts Options) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// New loads configuration and creates every client.
func New(ctx context.Context, opts Options) (*Clients, error) {
	cfg, err := LoadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Clients{
		Config: cfg,
		S3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			if opts.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(normalizeEndpoint(opts.S3Endpoint))
				o.UsePathStyle = true
			}
		}),
		DynamoDB: NewDynamoDB(cfg, opts.DynamoDBEndpoint),
		Bedrock: bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
			if opts.BedrockEndpoint != "" {
				o.BaseEndpoint = aws.String(normalizeEndpoint(opts.BedrockEndpoint))
			}
		}),
	}, nil
}

// NewDynamoDB creates a DynamoDB client, optionally against a local endpoint.
func NewDynamoDB(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(normalizeEndpoint(endpoint))
		}
	})
}

func normalizeEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}
