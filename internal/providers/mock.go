package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing and offline runs.
type MockClient struct {
	// Configurable behavior
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int // Fail after N requests (0 = never)
	Err        error

	// ToolArguments is returned as the arguments of a call to the first
	// tool. ArgumentsFor, when set, takes precedence.
	ToolArguments string
	ArgumentsFor  func(req *ChatRequest) string
	NoToolCall    bool
	ResponseText  string

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	lastRequest  *ChatRequest
	lastTools    []Tool
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// ChatWithTools records the request and answers with a canned tool call.
func (c *MockClient) ChatWithTools(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.lastRequest = req
	c.lastTools = tools
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	if c.ShouldFail {
		return nil, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	result := &ChatResult{
		Content:   c.ResponseText,
		Provider:  MockClientName,
		ModelUsed: req.Model,
		RequestID: fmt.Sprintf("mock-%d", count),
	}

	// Simulate token counting
	for _, m := range req.Messages {
		result.PromptTokens += len(m.Content) / 4
		for _, a := range m.Attachments {
			result.PromptTokens += len(a.Data) / 750
		}
	}

	if len(tools) > 0 && !c.NoToolCall {
		args := c.ToolArguments
		if c.ArgumentsFor != nil {
			args = c.ArgumentsFor(req)
		}
		if args == "" {
			args = "{}"
		}
		name := tools[0].Function.Name
		if req.ToolChoice != "" {
			name = req.ToolChoice
		}
		result.ToolCalls = []ToolCall{{
			ID:       fmt.Sprintf("mock-tool-call-%d", count),
			Type:     "function",
			Function: FunctionCall{Name: name, Arguments: args},
		}}
		result.CompletionTokens = len(args) / 4
	}
	result.TotalTokens = result.PromptTokens + result.CompletionTokens
	result.ExecutionTime = time.Since(start)

	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// LastRequest returns the most recent request and tools.
func (c *MockClient) LastRequest() (*ChatRequest, []Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRequest, c.lastTools
}

// Reset resets the request counter.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
}

var _ LLMClient = (*MockClient)(nil)
