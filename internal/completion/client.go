package completion

import (
	"context"
	"errors"
	"time"

	"assistd/internal/provider"
)

const (
	defaultMaxAttempts = 5
	defaultBackoffBase = 250 * time.Millisecond
	defaultMaxJitter   = 100 * time.Millisecond
)

// ClientConfig carries the retry knobs for a Client. Zero values mean "use
// package defaults".
type ClientConfig struct {
	// MaxAttempts is the total attempt budget per Complete call.
	MaxAttempts int
	// Timeout bounds each individual remote attempt. Zero disables the
	// per-attempt deadline.
	Timeout time.Duration
	// Policy computes the delay between attempts.
	Policy Policy
}

// Client wraps a remote provider with the retry policy. It holds no cache
// state; the only side effect of a call is the remote call itself.
type Client struct {
	provider    provider.Provider
	maxAttempts int
	timeout     time.Duration
	policy      Policy
}

// NewClient builds a Client around p, applying defaults for unset config.
func NewClient(p provider.Provider, cfg ClientConfig) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Policy.Base <= 0 {
		cfg.Policy.Base = defaultBackoffBase
	}
	if cfg.Policy.MaxJitter < 0 {
		cfg.Policy.MaxJitter = defaultMaxJitter
	}
	return &Client{
		provider:    p,
		maxAttempts: cfg.MaxAttempts,
		timeout:     cfg.Timeout,
		policy:      cfg.Policy,
	}
}

// Provider returns the wrapped provider.
func (c *Client) Provider() provider.Provider { return c.provider }

// Complete performs up to MaxAttempts remote calls, sleeping per the policy
// between retryable failures. Non-retryable errors are surfaced unchanged.
// After the budget is spent the last error is wrapped as retries-exhausted.
func (c *Client) Complete(ctx context.Context, prompt string, entries []string) (string, error) {
	req := provider.Request{Prompt: prompt, Context: entries}
	var last error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			retriesTotal.Inc()
		}
		remoteAttemptsTotal.Inc()
		text, err := c.attempt(ctx, req)
		if err == nil {
			return text, nil
		}
		// Caller cancellation is not a remote failure; stop immediately.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// An expired per-attempt deadline is a retryable timeout even when
		// the provider did not classify it.
		if errors.Is(err, context.DeadlineExceeded) {
			err = provider.ErrTimeout("attempt deadline exceeded")
		}
		last = err
		delay, retry := c.policy.Delay(attempt, err)
		if !retry {
			return "", err
		}
		if attempt == c.maxAttempts-1 {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", ErrRetriesExhausted(c.maxAttempts, last)
}

// attempt runs one remote call under the per-attempt deadline.
func (c *Client) attempt(ctx context.Context, req provider.Request) (string, error) {
	if c.timeout > 0 {
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.provider.Complete(actx, req)
	}
	return c.provider.Complete(ctx, req)
}

// StreamComplete opens a streaming completion. Streams are never retried;
// a mid-stream failure surfaces as stream-interrupted and re-issuing the
// stream is the caller's decision. Abandoning the stream via Close cancels
// the underlying call and releases the transport.
func (c *Client) StreamComplete(ctx context.Context, prompt string, entries []string) (*Stream, error) {
	req := provider.Request{Prompt: prompt, Context: entries}
	sctx, cancel := context.WithCancel(ctx)
	remoteAttemptsTotal.Inc()
	inner, err := c.provider.Stream(sctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return newStream(inner, cancel), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
