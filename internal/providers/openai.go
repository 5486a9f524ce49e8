package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o"
)

// OpenAIConfig holds configuration for the OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // Optional: any OpenAI-compatible endpoint
	DefaultModel string
	MaxTokens    int
	MaxRetries   int           // Retry attempts for SDK transport
	Timeout      time.Duration // HTTP timeout
	HTTPClient   *http.Client  // Optional (tests)
}

// OpenAIClient implements LLMClient over the chat completions API.
type OpenAIClient struct {
	defaultModel string
	maxTokens    int
	client       openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openAIDefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
		client:       openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// ChatWithTools sends one chat completion request with function tools.
// A named ToolChoice is sent as "required"; callers pass exactly one tool.
func (c *OpenAIClient) ChatWithTools(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	for _, m := range req.Messages {
		msg, err := openAIMessage(m)
		if err != nil {
			return nil, err
		}
		params.Messages = append(params.Messages, msg)
	}

	// Parameters are spliced into the body as raw JSON so the schema keeps its
	// key order; FunctionParameters is a map.
	var reqOpts []option.RequestOption
	for i, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openai.String(t.Function.Description),
		}))
		if len(t.Function.Parameters) == 0 {
			continue
		}
		var schema bytes.Buffer
		if err := json.Compact(&schema, t.Function.Parameters); err != nil {
			return nil, fmt.Errorf("invalid parameters for tool %s: %w", t.Function.Name, err)
		}
		reqOpts = append(reqOpts, option.WithJSONSet(fmt.Sprintf("tools.%d.function.parameters", i), json.RawMessage(schema.Bytes())))
	}
	if req.ToolChoice != "" && len(tools) > 0 {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("required"),
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices in response")
	}

	choice := resp.Choices[0]
	result := &ChatResult{
		Content:          choice.Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		StopReason:       choice.FinishReason,
		ExecutionTime:    time.Since(start),
		Provider:         OpenAIName,
		ModelUsed:        resp.Model,
		RequestID:        requestID,
	}
	if result.ModelUsed == "" {
		result.ModelUsed = model
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return result, nil
}

func openAIMessage(m Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case "system":
		return openai.SystemMessage(m.Content), nil
	case "assistant":
		return openai.AssistantMessage(m.Content), nil
	}
	if len(m.Attachments) == 0 {
		return openai.UserMessage(m.Content), nil
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Attachments)+1)
	for _, a := range m.Attachments {
		switch a.Kind {
		case AttachmentImage:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:" + imageMIME(a.Format) + ";base64," + base64.StdEncoding.EncodeToString(a.Data),
			}))
		case AttachmentText:
			parts = append(parts, openai.TextContentPart(string(a.Data)))
		default:
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: %s does not accept %s/%s", ErrUnsupportedAttachment, OpenAIName, a.Kind, a.Format)
		}
	}
	if m.Content != "" {
		parts = append(parts, openai.TextContentPart(m.Content))
	}
	return openai.UserMessage(parts), nil
}

func imageMIME(format string) string {
	switch format {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &APIError{
			Provider:   OpenAIName,
			Code:       apiErr.Code,
			StatusCode: apiErr.StatusCode,
			Message:    msg,
			Err:        err,
		}
	}
	return fmt.Errorf("openai chat completion failed: %w", err)
}

var _ LLMClient = (*OpenAIClient)(nil)
