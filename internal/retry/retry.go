// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config configures retry behavior with exponential backoff.
type Config struct {
	MaxRetries  int           // attempts after the first
	InitialWait time.Duration // wait before the first retry
	MaxWait     time.Duration // upper bound for a single wait
	Multiplier  float64       // backoff growth factor
}

// DefaultConfig returns the backoff used when opening the database.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  5,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
	}
}

// Do calls fn until it succeeds, retries are exhausted or ctx is done.
// onRetry, when non-nil, is told about every failed attempt that will be retried.
func Do(ctx context.Context, cfg Config, fn func() error, onRetry func(attempt int, err error)) error {
	var lastErr error
	wait := cfg.InitialWait

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxRetries {
			break
		}
		if onRetry != nil {
			onRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			wait = time.Duration(float64(wait) * cfg.Multiplier)
			if wait > cfg.MaxWait {
				wait = cfg.MaxWait
			}
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
