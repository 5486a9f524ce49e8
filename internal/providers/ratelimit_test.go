package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	r := NewRateLimiter(3)
	for i := 0; i < 3; i++ {
		if err := r.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() #%d error = %v", i, err)
		}
	}
	if got := r.Status().TokensAvailable; got != 0 {
		t.Errorf("tokens after burst = %d, want 0", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() on empty bucket = %v, want deadline exceeded", err)
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRateLimiter(60)
	r.now = func() time.Time { return now }
	r.lastUpdate = now
	r.tokens = 0

	now = now.Add(2 * time.Second)
	if got := r.Status().TokensAvailable; got != 2 {
		t.Errorf("tokens after 2s at 60/min = %d, want 2", got)
	}
	now = now.Add(time.Hour)
	if got := r.Status().TokensAvailable; got != 60 {
		t.Errorf("tokens capped at %d, want 60", got)
	}
}

func TestLimitedClient_DrainsOnThrottle(t *testing.T) {
	mock := NewMockClient()
	mock.Err = &APIError{Provider: BedrockName, Code: "ThrottlingException", StatusCode: 400, Message: "slow down"}
	c := WithRateLimit(mock, 10)

	if _, err := c.ChatWithTools(context.Background(), &ChatRequest{}, nil); err == nil {
		t.Fatal("ChatWithTools() expected error")
	}
	st := c.Limiter().Status()
	if st.TokensAvailable != 0 || st.LastThrottled.IsZero() {
		t.Errorf("status after throttle = %+v", st)
	}
	if c.Name() != MockClientName {
		t.Errorf("Name() = %q, want the wrapped client's", c.Name())
	}
}

func TestLimitedClient_PassesThrough(t *testing.T) {
	mock := NewMockClient()
	mock.ToolArguments = `{"a":1}`
	c := WithRateLimit(mock, 10)

	tools := []Tool{{Type: "function", Function: ToolFunction{Name: "json_tool"}}}
	res, err := c.ChatWithTools(context.Background(), &ChatRequest{}, tools)
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}
	if call, ok := res.FindToolCall("json_tool"); !ok || call.Function.Arguments != `{"a":1}` {
		t.Errorf("tool call = %+v, %v", call, ok)
	}
	if got := c.Limiter().Status().TotalConsumed; got != 1 {
		t.Errorf("consumed = %d, want 1", got)
	}
}
