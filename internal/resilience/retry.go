package resilience

import (
	"context"
	stderrors "errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/speaklarity/platform/internal/errors"
)

// Retry defaults.
const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultJitterFactor = 0.2
)

// RetryConfig holds retry settings. A negative MaxRetries disables retries.
type RetryConfig struct {
	MaxRetries   int              `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay    time.Duration    `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay     time.Duration    `mapstructure:"max_delay" yaml:"max_delay"`
	JitterFactor float64          `mapstructure:"jitter_factor" yaml:"jitter_factor"`
	IsRetryable  func(error) bool `mapstructure:"-" yaml:"-"`
}

// DefaultRetryConfig returns standard retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  IsRetryable,
	}
}

// IsRetryable reports whether err is a transient collaborator failure. An open
// breaker is never retried: the breaker already decided.
func IsRetryable(err error) bool {
	if err == nil || stderrors.Is(err, ErrOpen) {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		if apperrors.IsRetryable(err) {
			return true
		}
		if appErr.Cause == nil {
			return false
		}
		err = appErr.Cause
	}
	s, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// Retry executes fn with exponential backoff and returns the last error if
// every attempt fails.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if !cfg.IsRetryable(lastErr) || attempt == cfg.MaxRetries {
			return lastErr
		}

		delay := backoffDelay(cfg, attempt)
		slog.Debug("retrying after error", "attempt", attempt+1, "max", cfg.MaxRetries, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << min(attempt, 6)
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	jitter := float64(delay) * cfg.JitterFactor * (rand.Float64() - 0.5)
	return time.Duration(float64(delay) + jitter)
}

func (c RetryConfig) withDefaults() RetryConfig {
	switch {
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	case c.MaxRetries == 0:
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsRetryable
	}
	return c
}
