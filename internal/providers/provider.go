// Package providers adapts hosted multimodal inference APIs to a single
// tool-calling chat interface.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrUnsupportedAttachment is returned when a provider cannot carry an
// attachment kind or format.
var ErrUnsupportedAttachment = errors.New("unsupported attachment")

// LLMClient is the interface every inference provider implements.
type LLMClient interface {
	// ChatWithTools sends a chat request with tool definitions. When
	// req.ToolChoice names a tool, the provider must force that tool.
	ChatWithTools(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error)

	// Name returns the client identifier (e.g., "bedrock").
	Name() string
}

// AttachmentKind is the content block family of an attachment.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentText     AttachmentKind = "text"
)

// Attachment is binary media sent alongside a message.
type Attachment struct {
	Kind   AttachmentKind
	Format string // png, jpeg, gif, webp, pdf, txt
	Name   string // documents only
	Data   []byte
}

// Message represents a chat message.
type Message struct {
	Role        string       `json:"role"` // "system", "user", "assistant"
	Content     string       `json:"content"`
	Attachments []Attachment `json:"-"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`

	// ToolChoice forces a named tool. Empty lets the model decide.
	ToolChoice string `json:"tool_choice,omitempty"`

	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	StopReason    string        `json:"stop_reason,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`
}

// FindToolCall returns the first tool call with the given name.
func (r *ChatResult) FindToolCall(name string) (ToolCall, bool) {
	if r == nil {
		return ToolCall{}, false
	}
	for _, tc := range r.ToolCalls {
		if tc.Function.Name == name {
			return tc, true
		}
	}
	return ToolCall{}, false
}

// Tool defines a function/tool that the LLM can call.
type Tool struct {
	Type     string       `json:"type"` // "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"` // JSON Schema
}

// ToolCall represents a tool invocation from the LLM.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// APIError is a failed call to an upstream inference API.
type APIError struct {
	Provider   string
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Provider + ": " + e.Code + ": " + e.Message
	}
	return e.Provider + ": " + e.Message
}

func (e *APIError) Unwrap() error { return e.Err }
