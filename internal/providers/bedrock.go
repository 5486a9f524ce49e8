package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

const (
	BedrockName         = "bedrock"
	BedrockDefaultModel = "us.anthropic.claude-sonnet-4-20250514-v1:0"
)

// ConverseAPI is the subset of the Bedrock runtime client used here.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockConfig holds configuration for the Bedrock client.
type BedrockConfig struct {
	DefaultModel string
	MaxTokens    int
}

// BedrockClient implements LLMClient using the Bedrock Converse API.
type BedrockClient struct {
	api          ConverseAPI
	defaultModel string
	maxTokens    int
}

// NewBedrockClient creates a new Bedrock client over an SDK client.
func NewBedrockClient(api ConverseAPI, cfg BedrockConfig) *BedrockClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = BedrockDefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	return &BedrockClient{
		api:          api,
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
	}
}

// Name returns the client identifier.
func (c *BedrockClient) Name() string {
	return BedrockName
}

// ChatWithTools sends one Converse request carrying the tool definitions.
func (c *BedrockClient) ChatWithTools(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error) {
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

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(maxTokens)),
		},
	}
	if req.Temperature > 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(req.Temperature))
	}

	for _, m := range req.Messages {
		if m.Role == "system" {
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		blocks, err := converseContent(m)
		if err != nil {
			return nil, err
		}
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		input.Messages = append(input.Messages, types.Message{Role: role, Content: blocks})
	}

	if len(tools) > 0 {
		input.ToolConfig = &types.ToolConfiguration{}
		for _, t := range tools {
			var schema any = map[string]any{}
			if len(t.Function.Parameters) > 0 {
				doc, err := orderedDocument(t.Function.Parameters)
				if err != nil {
					return nil, fmt.Errorf("invalid parameters for tool %s: %w", t.Function.Name, err)
				}
				schema = doc
			}
			input.ToolConfig.Tools = append(input.ToolConfig.Tools, &types.ToolMemberToolSpec{
				Value: types.ToolSpecification{
					Name:        aws.String(t.Function.Name),
					Description: aws.String(t.Function.Description),
					InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
				},
			})
		}
		if req.ToolChoice != "" {
			input.ToolConfig.ToolChoice = &types.ToolChoiceMemberTool{
				Value: types.SpecificToolChoice{Name: aws.String(req.ToolChoice)},
			}
		}
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return nil, wrapBedrockError(err)
	}

	result := &ChatResult{
		Provider:      BedrockName,
		ModelUsed:     model,
		RequestID:     requestID,
		StopReason:    string(out.StopReason),
		ExecutionTime: time.Since(start),
	}
	if u := out.Usage; u != nil {
		result.PromptTokens = int(aws.ToInt32(u.InputTokens))
		result.CompletionTokens = int(aws.ToInt32(u.OutputTokens))
		result.TotalTokens = int(aws.ToInt32(u.TotalTokens))
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock: unexpected output type %T", out.Output)
	}
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			result.Content += b.Value
		case *types.ContentBlockMemberToolUse:
			args := "{}"
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return nil, fmt.Errorf("bedrock: failed to decode tool input: %w", err)
				}
				args = string(raw)
			}
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:   aws.ToString(b.Value.ToolUseId),
				Type: "function",
				Function: FunctionCall{
					Name:      aws.ToString(b.Value.Name),
					Arguments: args,
				},
			})
		}
	}

	return result, nil
}

func converseContent(m Message) ([]types.ContentBlock, error) {
	blocks := make([]types.ContentBlock, 0, len(m.Attachments)+1)
	for _, a := range m.Attachments {
		switch a.Kind {
		case AttachmentImage:
			format, err := bedrockImageFormat(a.Format)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, &types.ContentBlockMemberImage{
				Value: types.ImageBlock{
					Format: format,
					Source: &types.ImageSourceMemberBytes{Value: a.Data},
				},
			})
		case AttachmentDocument:
			if a.Format != "pdf" {
				return nil, fmt.Errorf("%w: document format %q", ErrUnsupportedAttachment, a.Format)
			}
			name := a.Name
			if name == "" {
				name = "document"
			}
			blocks = append(blocks, &types.ContentBlockMemberDocument{
				Value: types.DocumentBlock{
					Format: types.DocumentFormatPdf,
					Name:   aws.String(name),
					Source: &types.DocumentSourceMemberBytes{Value: a.Data},
				},
			})
		case AttachmentText:
			blocks = append(blocks, &types.ContentBlockMemberText{Value: string(a.Data)})
		default:
			return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedAttachment, a.Kind)
		}
	}
	if m.Content != "" {
		blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Content})
	}
	return blocks, nil
}

func bedrockImageFormat(format string) (types.ImageFormat, error) {
	switch format {
	case "png":
		return types.ImageFormatPng, nil
	case "jpeg", "jpg":
		return types.ImageFormatJpeg, nil
	case "gif":
		return types.ImageFormatGif, nil
	case "webp":
		return types.ImageFormatWebp, nil
	}
	return "", fmt.Errorf("%w: image format %q", ErrUnsupportedAttachment, format)
}

func wrapBedrockError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		status := 0
		var httpErr interface{ HTTPStatusCode() int }
		if errors.As(err, &httpErr) {
			status = httpErr.HTTPStatusCode()
		}
		return &APIError{
			Provider:   BedrockName,
			Code:       apiErr.ErrorCode(),
			StatusCode: status,
			Message:    apiErr.ErrorMessage(),
			Err:        err,
		}
	}
	return fmt.Errorf("bedrock converse failed: %w", err)
}

var _ LLMClient = (*BedrockClient)(nil)
