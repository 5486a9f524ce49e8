// Package pipeline turns one uploaded object into one stored record.
//
// A Processor reads the object, checks that it decodes as its extension
// says, asks the configured model to call the extraction tool once, and
// writes the validated arguments to the record store. Every failure before
// the write leaves the store untouched.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Koba-gh/bedrock-json-cdk/internal/media"
	"github.com/Koba-gh/bedrock-json-cdk/internal/metrics"
	"github.com/Koba-gh/bedrock-json-cdk/internal/providers"
	"github.com/Koba-gh/bedrock-json-cdk/internal/specs"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
	"github.com/Koba-gh/bedrock-json-cdk/internal/table"
)

// DefaultMaxTokens bounds the model response.
const DefaultMaxTokens = 1000

// Config wires a Processor.
type Config struct {
	Client providers.LLMClient
	Store  storage.ObjectStore
	Table  table.RecordStore

	// Model overrides the client's default model.
	Model     string
	MaxTokens int

	Logger  *zap.Logger
	Metrics *metrics.Recorder

	// Now is used for extracted_at. Defaults to time.Now.
	Now func() time.Time
}

// Processor runs extractions. It holds no per-object state and is safe for
// concurrent use.
type Processor struct {
	client    providers.LLMClient
	store     storage.ObjectStore
	table     table.RecordStore
	model     string
	maxTokens int
	logger    *zap.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
}

// Result describes a stored record.
type Result struct {
	Ref   storage.ObjectRef `json:"ref" yaml:"ref"`
	Media media.Kind        `json:"media" yaml:"media"`
	Item  table.Item        `json:"item" yaml:"item"`

	Provider         string        `json:"provider" yaml:"provider"`
	Model            string        `json:"model" yaml:"model"`
	RequestID        string        `json:"request_id" yaml:"request_id"`
	PromptTokens     int           `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens" yaml:"completion_tokens"`
	InferenceTime    time.Duration `json:"inference_time" yaml:"inference_time"`
	TotalTime        time.Duration `json:"total_time" yaml:"total_time"`
}

// NewProcessor validates cfg and returns a Processor.
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Client == nil {
		return nil, errors.New("pipeline: LLM client is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("pipeline: object store is required")
	}
	if cfg.Table == nil {
		return nil, errors.New("pipeline: record store is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Processor{
		client:    cfg.Client,
		store:     cfg.Store,
		table:     cfg.Table,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
	}, nil
}

// Process extracts and stores the record for ref. ref.Key must already be
// URL-decoded; it becomes the item key.
func (p *Processor) Process(ctx context.Context, ref storage.ObjectRef) (res *Result, err error) {
	start := time.Now()
	logger := p.logger.With(
		zap.String("bucket", ref.Bucket),
		zap.String("key", ref.Key),
		zap.String("provider", p.client.Name()),
	)

	var kind media.Kind
	defer func() {
		took := time.Since(start)
		class := Classify(err)
		p.metrics.RecordObject(string(kind), string(class), took)
		if err != nil {
			logger.Error("extraction failed",
				zap.String("class", string(class)),
				zap.Duration("latency", took),
				zap.Error(err),
			)
			return
		}
		res.TotalTime = took
		logger.Info("record stored",
			zap.String("model", res.Model),
			zap.Duration("latency", took),
			zap.Duration("inference", res.InferenceTime),
			zap.Int("prompt_tokens", res.PromptTokens),
			zap.Int("completion_tokens", res.CompletionTokens),
		)
	}()

	if ref.Key == "" {
		return nil, fmt.Errorf("%w: empty object key", ErrUnsupportedMedia)
	}

	mt, err := media.Detect(ref.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedMedia, err)
	}
	kind = mt.Kind

	obj, err := p.store.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrObjectTooLarge) {
			return nil, fmt.Errorf("%w: %w", ErrUnreadableInput, err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}

	if err := media.Validate(mt, obj.Data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableInput, ref, err)
	}

	req := &providers.ChatRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []providers.Message{{
			Role:    "user",
			Content: specs.Prompt(),
			Attachments: []providers.Attachment{{
				Kind:   providers.AttachmentKind(mt.Kind),
				Format: mt.Format,
				Data:   obj.Data,
			}},
		}},
		ToolChoice: specs.ToolName,
	}

	result, err := p.client.ChatWithTools(ctx, req, []providers.Tool{specs.Tool()})
	if err != nil {
		return nil, fmt.Errorf("inference failed for %s: %w", ref, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty response", ErrNoToolCall)
	}
	p.metrics.RecordLLMCall(result)

	call, ok := result.FindToolCall(specs.ToolName)
	if !ok {
		return nil, fmt.Errorf("%w: %s (stop reason %q)", ErrNoToolCall, specs.ToolName, result.StopReason)
	}

	record, err := specs.ParseArguments(json.RawMessage(call.Function.Arguments))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s arguments for %s: %w", specs.ToolName, ref, err)
	}

	item := table.Item{
		Name:        ref.Key,
		Record:      *record,
		Bucket:      ref.Bucket,
		Provider:    result.Provider,
		ModelID:     result.ModelUsed,
		ExtractedAt: p.now().UTC(),
	}
	if err := p.table.Put(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to store record for %s: %w", ref, err)
	}

	return &Result{
		Ref:              ref,
		Media:            mt.Kind,
		Item:             item,
		Provider:         result.Provider,
		Model:            result.ModelUsed,
		RequestID:        result.RequestID,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		InferenceTime:    result.ExecutionTime,
	}, nil
}
