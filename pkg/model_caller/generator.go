package model_caller

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLimitReached is returned by a non-blocking limiter with no free slot.
var ErrLimitReached = errors.New("concurrency limit reached")

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options selects and configures a provider for New.
type Options struct {
	Provider    string
	APIKey      string
	APIBase     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// New builds the generator for opts.Provider.
func New(ctx context.Context, opts Options) (Generator, error) {
	switch opts.Provider {
	case "gemini", "":
		return NewGeminiCaller(ctx, opts.APIKey, opts.Model, opts.MaxTokens, opts.Temperature)
	case "openai":
		if opts.APIBase == "" {
			return nil, errors.New("openai provider requires api_base")
		}
		return NewModelCaller(opts.APIBase, opts.APIKey, opts.Model, opts.Timeout, &CallOptions{
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
			TopP:        1.0,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}

// LimitedGenerator admits calls through a ConcurrencyLimiter and applies a
// per-call timeout.
type LimitedGenerator struct {
	next    Generator
	limiter *ConcurrencyLimiter
	key     string
	timeout time.Duration
}

// WithLimit wraps next. A zero timeout leaves the caller's deadline alone.
func WithLimit(next Generator, limiter *ConcurrencyLimiter, key string, timeout time.Duration) *LimitedGenerator {
	return &LimitedGenerator{next: next, limiter: limiter, key: key, timeout: timeout}
}

// Generate waits for a slot, then calls the wrapped generator.
func (g *LimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.limiter.Acquire(ctx, g.key); err != nil {
		return "", fmt.Errorf("acquire model slot: %w", err)
	}
	defer g.limiter.Release(ctx, g.key)

	return g.next.Generate(ctx, prompt)
}

// ConcurrencyLimiter is an in-process semaphore. A blocking limiter waits for a
// slot until ctx ends; a non-blocking one fails fast with ErrLimitReached.
type ConcurrencyLimiter struct {
	maxConcurrent int
	semaphore     chan struct{}
	nonBlocking   bool
}

// NewConcurrencyLimiter creates a blocking limiter.
func NewConcurrencyLimiter(maxConcurrent int) *ConcurrencyLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &ConcurrencyLimiter{
		maxConcurrent: maxConcurrent,
		semaphore:     make(chan struct{}, maxConcurrent),
	}
}

// NewTryLimiter creates a non-blocking limiter.
func NewTryLimiter(maxConcurrent int) *ConcurrencyLimiter {
	l := NewConcurrencyLimiter(maxConcurrent)
	l.nonBlocking = true
	return l
}

// Acquire takes a slot.
func (cl *ConcurrencyLimiter) Acquire(ctx context.Context, key string) error {
	if cl.nonBlocking {
		select {
		case cl.semaphore <- struct{}{}:
			return nil
		default:
			return fmt.Errorf("%w: %d", ErrLimitReached, cl.maxConcurrent)
		}
	}
	select {
	case cl.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (cl *ConcurrencyLimiter) Release(ctx context.Context, key string) {
	select {
	case <-cl.semaphore:
	default:
	}
}

// InUse returns the number of held slots.
func (cl *ConcurrencyLimiter) InUse() int {
	return len(cl.semaphore)
}
