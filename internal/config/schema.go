package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds pcspecs configuration.
type Config struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`     // "bedrock", "openai", "mock"
	ModelID   string `mapstructure:"model_id" yaml:"model_id"`     // Bedrock model or inference profile id
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"` // Inference output token cap

	// RateLimitRPM caps inference calls per minute in the long-running
	// modes. 0 disables the limiter.
	RateLimitRPM int `mapstructure:"rate_limit_rpm" yaml:"rate_limit_rpm"`

	AWS    AWSConfig    `mapstructure:"aws" yaml:"aws"`
	OpenAI OpenAIConfig `mapstructure:"openai" yaml:"openai"`
	Table  TableConfig  `mapstructure:"table" yaml:"table"`
	MinIO  MinIOConfig  `mapstructure:"minio" yaml:"minio"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
}

// AWSConfig selects region, credentials and endpoint overrides. Empty
// values fall back to the SDK's default chain.
type AWSConfig struct {
	Region           string `mapstructure:"region" yaml:"region"`
	AccessKeyID      string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	S3Endpoint       string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	DynamoDBEndpoint string `mapstructure:"dynamodb_endpoint" yaml:"dynamodb_endpoint"`
	BedrockEndpoint  string `mapstructure:"bedrock_endpoint" yaml:"bedrock_endpoint"`
}

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// TableConfig selects where records are written.
type TableConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"` // "dynamodb", "postgres", "memory"
	Name        string `mapstructure:"name" yaml:"name"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"` // Supports ${ENV_VAR} syntax
}

// MinIOConfig configures the local object store and its notifications.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Region    string `mapstructure:"region" yaml:"region"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json, console
}

// ServerConfig configures the ops HTTP server of long-running commands.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"` // Empty disables the server
	// CORSOrigins lets browser dashboards on these origins call the server.
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	Settle time.Duration `mapstructure:"settle" yaml:"settle"` // How long a file size must be stable
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:  "bedrock",
		ModelID:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		MaxTokens: 1000,
		OpenAI: OpenAIConfig{
			APIKey: "${OPENAI_API_KEY}",
			Model:  "gpt-4o",
		},
		Table: TableConfig{
			Backend: "dynamodb",
		},
		MinIO: MinIOConfig{
			Endpoint: "localhost:9000",
			Region:   "us-east-1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Watch: WatchConfig{
			Settle: 500 * time.Millisecond,
		},
	}
}

// Validate reports every problem that would stop an invocation.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case "bedrock", "mock":
		if c.ModelID == "" {
			errs = append(errs, errors.New("model_id is required (BEDROCK_MODEL_ID)"))
		}
	case "openai":
		if ResolveEnvVars(c.OpenAI.APIKey) == "" {
			errs = append(errs, errors.New("openai.api_key is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q (want bedrock, openai or mock)", c.Provider))
	}

	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens))
	}
	if c.RateLimitRPM < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_rpm must not be negative, got %d", c.RateLimitRPM))
	}

	switch c.Table.Backend {
	case "dynamodb", "postgres":
		if c.Table.Name == "" {
			errs = append(errs, errors.New("table.name is required (DYNAMODB_TABLE_NAME)"))
		}
		if c.Table.Backend == "postgres" && ResolveEnvVars(c.Table.PostgresDSN) == "" {
			errs = append(errs, errors.New("table.postgres_dsn is required for the postgres backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown table backend %q (want dynamodb, postgres or memory)", c.Table.Backend))
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
