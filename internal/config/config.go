package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every pcspecs environment variable.
const EnvPrefix = "PCSPECS"

// envAliases are extra variable names checked after the prefixed one.
// DYNAMODB_TABLE_NAME and BEDROCK_MODEL_ID are what the deployed function
// is configured with.
var envAliases = map[string]string{
	"table.name":         "DYNAMODB_TABLE_NAME",
	"model_id":           "BEDROCK_MODEL_ID",
	"table.postgres_dsn": "PCSPECS_POSTGRES_DSN",
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults, environment and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pcspecs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pcspecs")
	}

	// Config file is optional; Lambda runs from environment alone.
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every key so AutomaticEnv can see nested values
// during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("provider", d.Provider)
	v.SetDefault("model_id", d.ModelID)
	v.SetDefault("max_tokens", d.MaxTokens)
	v.SetDefault("rate_limit_rpm", d.RateLimitRPM)

	v.SetDefault("aws.region", d.AWS.Region)
	v.SetDefault("aws.access_key_id", d.AWS.AccessKeyID)
	v.SetDefault("aws.secret_access_key", d.AWS.SecretAccessKey)
	v.SetDefault("aws.s3_endpoint", d.AWS.S3Endpoint)
	v.SetDefault("aws.dynamodb_endpoint", d.AWS.DynamoDBEndpoint)
	v.SetDefault("aws.bedrock_endpoint", d.AWS.BedrockEndpoint)

	v.SetDefault("openai.api_key", d.OpenAI.APIKey)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("openai.model", d.OpenAI.Model)

	v.SetDefault("table.backend", d.Table.Backend)
	v.SetDefault("table.name", d.Table.Name)
	v.SetDefault("table.postgres_dsn", d.Table.PostgresDSN)

	v.SetDefault("minio.endpoint", d.MinIO.Endpoint)
	v.SetDefault("minio.access_key", d.MinIO.AccessKey)
	v.SetDefault("minio.secret_key", d.MinIO.SecretKey)
	v.SetDefault("minio.region", d.MinIO.Region)
	v.SetDefault("minio.use_ssl", d.MinIO.UseSSL)
	v.SetDefault("minio.bucket", d.MinIO.Bucket)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("watch.settle", d.Watch.Settle)
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Set overrides a single key, e.g. from a command-line flag, and reloads.
func (cm *Manager) Set(key string, value any) error {
	cm.v.Set(key, value)
	cfg, err := cm.load()
	if err != nil {
		return err
	}
	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()
	return nil
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# pcspecs configuration
# Every key can be overridden with PCSPECS_<KEY>, e.g. PCSPECS_TABLE_BACKEND.
# DYNAMODB_TABLE_NAME and BEDROCK_MODEL_ID are also honored.
# Secrets use ${ENV_VAR} syntax to reference environment variables.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
