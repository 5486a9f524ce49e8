package specs

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/Koba-gh/bedrock-json-cdk/internal/providers"
)

type captureConverse struct {
	input *bedrockruntime.ConverseInput
}

func (c *captureConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	c.input = params
	return &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonToolUse,
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberToolUse{
						Value: types.ToolUseBlock{
							Name:      aws.String(ToolName),
							ToolUseId: aws.String("tooluse_1"),
							Input:     document.NewLazyDocument(map[string]any{"pc_name": "x"}),
						},
					},
				},
			},
		},
	}, nil
}

func extractionRequest() *providers.ChatRequest {
	return &providers.ChatRequest{
		Messages:   []providers.Message{{Role: "user", Content: Prompt()}},
		ToolChoice: ToolName,
	}
}

// Map-backed documents encode in random key order, so one matching call
// proves little. Every call must send the schema bytes unchanged.
func TestToolSchema_BedrockWire(t *testing.T) {
	fake := &captureConverse{}
	client := providers.NewBedrockClient(fake, providers.BedrockConfig{})

	for i := 0; i < 30; i++ {
		if _, err := client.ChatWithTools(context.Background(), extractionRequest(), []providers.Tool{Tool()}); err != nil {
			t.Fatalf("ChatWithTools() error = %v", err)
		}
		spec, ok := fake.input.ToolConfig.Tools[0].(*types.ToolMemberToolSpec)
		if !ok {
			t.Fatalf("tool = %T, want *types.ToolMemberToolSpec", fake.input.ToolConfig.Tools[0])
		}
		in, ok := spec.Value.InputSchema.(*types.ToolInputSchemaMemberJson)
		if !ok {
			t.Fatalf("input schema = %T, want *types.ToolInputSchemaMemberJson", spec.Value.InputSchema)
		}
		got, err := in.Value.MarshalSmithyDocument()
		if err != nil {
			t.Fatalf("MarshalSmithyDocument() error = %v", err)
		}
		if string(got) != string(ToolSchema()) {
			t.Fatalf("call %d sent schema\n got: %s\nwant: %s", i, got, ToolSchema())
		}
	}
}

func TestToolSchema_OpenAIWire(t *testing.T) {
	var bodies [][]byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		bodies = append(bodies, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
			"tool_calls":[{"id":"call_1","type":"function","function":{"name":"json_tool","arguments":"{}"}}]}}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer server.Close()

	client := providers.NewOpenAIClient(providers.OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	for i := 0; i < 5; i++ {
		if _, err := client.ChatWithTools(context.Background(), extractionRequest(), []providers.Tool{Tool()}); err != nil {
			t.Fatalf("ChatWithTools() error = %v", err)
		}
	}

	want := append([]byte(`"parameters":`), ToolSchema()...)
	for i, body := range bodies {
		if !bytes.Contains(body, want) {
			t.Fatalf("request %d does not carry the schema verbatim:\n%s", i, body)
		}
	}
}
