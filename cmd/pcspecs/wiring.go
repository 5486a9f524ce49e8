package main

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Koba-gh/bedrock-json-cdk/internal/awsenv"
	"github.com/Koba-gh/bedrock-json-cdk/internal/config"
	"github.com/Koba-gh/bedrock-json-cdk/internal/home"
	"github.com/Koba-gh/bedrock-json-cdk/internal/logging"
	"github.com/Koba-gh/bedrock-json-cdk/internal/metrics"
	"github.com/Koba-gh/bedrock-json-cdk/internal/pipeline"
	"github.com/Koba-gh/bedrock-json-cdk/internal/providers"
	"github.com/Koba-gh/bedrock-json-cdk/internal/server"
	"github.com/Koba-gh/bedrock-json-cdk/internal/specs"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
	"github.com/Koba-gh/bedrock-json-cdk/internal/table"
	"github.com/Koba-gh/bedrock-json-cdk/version"
)

// app holds what every command builds from configuration.
type app struct {
	mgr     *config.Manager
	cfg     *config.Config
	logger  *zap.Logger
	level   zap.AtomicLevel
	metrics *metrics.Recorder

	awsOnce sync.Once
	aws     *awsenv.Clients
	awsErr  error

	checks  map[string]server.Check
	closers []func()
}

// newApp loads configuration, applies overrides (viper keys such as
// "provider" or "table.backend") and validates the result.
func newApp(overrides map[string]any) (*app, error) {
	mgr, err := config.NewManager(configPath())
	if err != nil {
		return nil, err
	}
	for key, value := range overrides {
		if err := mgr.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", key, err)
		}
	}
	cfg := mgr.Get()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, level, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Fields: map[string]string{"version": version.GitRelease},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if used := mgr.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config file", zap.String("path", used))
	}

	return &app{
		mgr:     mgr,
		cfg:     cfg,
		logger:  logger,
		level:   level,
		metrics: metrics.NewRecorder(),
		checks:  make(map[string]server.Check),
	}, nil
}

// configPath returns --config, else the config file of a custom --home.
// With neither, viper searches ./ and ~/.pcspecs.
func configPath() string {
	if cfgFile != "" || homeDir == "" {
		return cfgFile
	}
	h, err := home.New(homeDir)
	if err != nil || !h.ConfigExists() {
		return ""
	}
	return h.ConfigPath()
}

// watchConfig applies log level changes from the config file while running.
func (a *app) watchConfig() {
	if a.mgr.ConfigFileUsed() == "" {
		return
	}
	a.mgr.OnChange(func(c *config.Config) {
		if logging.SetLevel(a.level, c.Log.Level) {
			a.logger.Info("log level reloaded", zap.String("level", c.Log.Level))
		}
	})
	a.mgr.WatchConfig()
}

func (a *app) awsClients(ctx context.Context) (*awsenv.Clients, error) {
	a.awsOnce.Do(func() {
		a.aws, a.awsErr = awsenv.New(ctx, awsenv.Options{
			Region:           a.cfg.AWS.Region,
			AccessKeyID:      a.cfg.AWS.AccessKeyID,
			SecretAccessKey:  config.ResolveEnvVars(a.cfg.AWS.SecretAccessKey),
			S3Endpoint:       a.cfg.AWS.S3Endpoint,
			DynamoDBEndpoint: a.cfg.AWS.DynamoDBEndpoint,
			BedrockEndpoint:  a.cfg.AWS.BedrockEndpoint,
		})
	})
	return a.aws, a.awsErr
}

// llm registers the providers the configuration can build and returns the
// selected one.
func (a *app) llm(ctx context.Context) (providers.LLMClient, error) {
	registry := providers.NewRegistry(a.logger)

	switch a.cfg.Provider {
	case providers.BedrockName:
		clients, err := a.awsClients(ctx)
		if err != nil {
			return nil, err
		}
		registry.RegisterLLM(providers.BedrockName, providers.NewBedrockClient(clients.Bedrock, providers.BedrockConfig{
			DefaultModel: a.cfg.ModelID,
			MaxTokens:    a.cfg.MaxTokens,
		}))
	case providers.OpenAIName:
		registry.RegisterLLM(providers.OpenAIName, providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:       config.ResolveEnvVars(a.cfg.OpenAI.APIKey),
			BaseURL:      a.cfg.OpenAI.BaseURL,
			DefaultModel: a.cfg.OpenAI.Model,
			MaxTokens:    a.cfg.MaxTokens,
		}))
	}
	mock := providers.NewMockClient()
	mock.ToolArguments = string(specs.ExampleArguments())
	registry.RegisterLLM(providers.MockClientName, mock)

	client, err := registry.GetLLM(a.cfg.Provider)
	if err != nil {
		return nil, err
	}
	if a.cfg.RateLimitRPM > 0 {
		return providers.WithRateLimit(client, a.cfg.RateLimitRPM), nil
	}
	return client, nil
}

func (a *app) table(ctx context.Context) (table.RecordStore, error) {
	switch a.cfg.Table.Backend {
	case "dynamodb":
		clients, err := a.awsClients(ctx)
		if err != nil {
			return nil, err
		}
		return table.NewDynamoStore(clients.DynamoDB, a.cfg.Table.Name), nil
	case "postgres":
		pool, err := table.NewPostgresPool(ctx, config.ResolveEnvVars(a.cfg.Table.PostgresDSN))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.checks["postgres"] = pool.Ping
		store := table.NewPostgresStore(pool, a.cfg.Table.Name)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return table.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown table backend %q", a.cfg.Table.Backend)
	}
}

func (a *app) s3Store(ctx context.Context) (storage.ObjectStore, error) {
	clients, err := a.awsClients(ctx)
	if err != nil {
		return nil, err
	}
	return storage.NewS3Store(clients.S3), nil
}

func (a *app) minioStore() (*storage.MinioStore, error) {
	cli, err := storage.NewMinioClient(storage.MinioConfig{
		Endpoint:  a.cfg.MinIO.Endpoint,
		AccessKey: config.ResolveEnvVars(a.cfg.MinIO.AccessKey),
		SecretKey: config.ResolveEnvVars(a.cfg.MinIO.SecretKey),
		Region:    a.cfg.MinIO.Region,
		UseSSL:    a.cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return storage.NewMinioStore(cli), nil
}

// processor wires the pipeline over store and the configured table.
func (a *app) processor(ctx context.Context, store storage.ObjectStore) (*pipeline.Processor, error) {
	client, err := a.llm(ctx)
	if err != nil {
		return nil, err
	}
	records, err := a.table(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("pipeline ready",
		zap.String("provider", client.Name()),
		zap.String("table_backend", a.cfg.Table.Backend),
		zap.String("table", a.cfg.Table.Name),
	)
	return pipeline.NewProcessor(pipeline.Config{
		Client:    client,
		Store:     store,
		Table:     records,
		MaxTokens: a.cfg.MaxTokens,
		Logger:    a.logger,
		Metrics:   a.metrics,
	})
}

// serveOps starts the ops server in the background when server.addr is set.
// The returned channel yields the server's exit error.
func (a *app) serveOps(ctx context.Context, proc server.Processor) <-chan error {
	done := make(chan error, 1)
	if a.cfg.Server.Addr == "" {
		close(done)
		return done
	}
	srv := server.New(server.Config{
		Addr:        a.cfg.Server.Addr,
		Processor:   proc,
		Registry:    a.metrics.Registry(),
		Checks:      a.checks,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Logger:      a.logger,
	})
	go func() {
		done <- srv.Start(ctx)
		close(done)
	}()
	return done
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
