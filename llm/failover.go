package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ChainConfig controls per-provider retry behavior inside the failover chain.
type ChainConfig struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	Backoff    time.Duration `yaml:"backoff" json:"backoff"`
}

// DefaultChainConfig returns the default chain configuration.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
	}
}

// ErrAllProvidersFailed marks total outage across the chain. Callers switch
// to the deterministic fallback answer on seeing it.
var ErrAllProvidersFailed = errors.New("llm: all providers failed")

// Chain tries each provider in order, retrying retryable errors with linear
// backoff before moving to the next. Adding a provider is adding a list
// entry.
type Chain struct {
	providers []Provider
	config    ChainConfig
	logger    *zap.Logger
}

// NewChain builds a failover chain over providers, primary first.
func NewChain(config ChainConfig, logger *zap.Logger, providers ...Provider) *Chain {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.Backoff <= 0 {
		config.Backoff = 500 * time.Millisecond
	}
	return &Chain{
		providers: providers,
		config:    config,
		logger:    logger.With(zap.String("component", "llm_chain")),
	}
}

func (c *Chain) sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.config.Backoff * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Complete runs the completion through the chain. The second return reports
// whether a non-primary provider produced the answer.
func (c *Chain) Complete(ctx context.Context, req *ChatRequest) (string, bool, error) {
	var lastErr error
	for i, provider := range c.providers {
		for attempt := 1; attempt <= c.config.MaxRetries+1; attempt++ {
			text, err := provider.Complete(ctx, req)
			if err == nil {
				return text, i > 0, nil
			}
			lastErr = err
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			c.logger.Warn("provider completion failed",
				zap.String("provider", provider.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if !IsRetryable(err) || attempt > c.config.MaxRetries {
				break
			}
			if err := c.sleep(ctx, attempt); err != nil {
				return "", false, err
			}
		}
	}
	if lastErr == nil {
		lastErr = ErrAllProvidersFailed
	}
	return "", false, errors.Join(ErrAllProvidersFailed, lastErr)
}

// Stream opens a streaming completion through the chain. Failover covers
// connection establishment only; once deltas flow, errors surface in-band.
func (c *Chain) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, bool, error) {
	var lastErr error
	for i, provider := range c.providers {
		for attempt := 1; attempt <= c.config.MaxRetries+1; attempt++ {
			ch, err := provider.Stream(ctx, req)
			if err == nil {
				return ch, i > 0, nil
			}
			lastErr = err
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			c.logger.Warn("provider stream failed",
				zap.String("provider", provider.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if !IsRetryable(err) || attempt > c.config.MaxRetries {
				break
			}
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, false, err
			}
		}
	}
	if lastErr == nil {
		lastErr = ErrAllProvidersFailed
	}
	return nil, false, errors.Join(ErrAllProvidersFailed, lastErr)
}
