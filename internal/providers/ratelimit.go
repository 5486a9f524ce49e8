package providers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at a per-minute rate.
type RateLimiter struct {
	mu sync.Mutex

	perMinute  int
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time

	consumed  int64
	waited    time.Duration
	throttled time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	LastThrottled   time.Time     `json:"last_throttled,omitempty"`
}

// NewRateLimiter allows perMinute requests per minute with bursts of the
// same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		perMinute:  perMinute,
		tokens:     float64(perMinute),
		lastUpdate: time.Now(),
		now:        time.Now,
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.consumed++
			r.mu.Unlock()
			return nil
		}
		wait := r.untilToken()
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// Throttled drains the bucket after the upstream rejected a call for rate.
func (r *RateLimiter) Throttled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	r.tokens = 0
	r.throttled = r.now()
}

// Status returns current limiter state.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.perMinute,
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
		LastThrottled:   r.throttled,
	}
}

// refill must be called with the lock held.
func (r *RateLimiter) refill() {
	now := r.now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now
	r.tokens += elapsed * float64(r.perMinute) / 60
	if r.tokens > float64(r.perMinute) {
		r.tokens = float64(r.perMinute)
	}
}

func (r *RateLimiter) untilToken() time.Duration {
	perSecond := float64(r.perMinute) / 60
	return time.Duration((1 - r.tokens) / perSecond * float64(time.Second))
}

// LimitedClient waits for the limiter before every call.
type LimitedClient struct {
	LLMClient
	limiter *RateLimiter
}

// WithRateLimit wraps client so it makes at most perMinute calls a minute.
// A throttling error from the upstream drains the bucket.
func WithRateLimit(client LLMClient, perMinute int) *LimitedClient {
	return &LimitedClient{LLMClient: client, limiter: NewRateLimiter(perMinute)}
}

// Limiter returns the underlying limiter.
func (c *LimitedClient) Limiter() *RateLimiter {
	return c.limiter
}

// ChatWithTools waits for a token, then calls the wrapped client.
func (c *LimitedClient) ChatWithTools(ctx context.Context, req *ChatRequest, tools []Tool) (*ChatResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.LLMClient.ChatWithTools(ctx, req, tools)
	if isThrottle(err) {
		c.limiter.Throttled()
	}
	return result, err
}

func isThrottle(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.Code == "ThrottlingException"
}
