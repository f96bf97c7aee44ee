package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/speaklarity/platform/internal/errors"
)

// Policy bundles what every collaborator call is wrapped with.
type Policy struct {
	Breaker *Breaker
	Retry   RetryConfig
	Timeout time.Duration
}

// Call runs fn under p: each attempt gets its own deadline, passes through the
// breaker, and transient failures are retried. An attempt that runs out its
// deadline is reported as TIMEOUT.
func Call[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := Retry(ctx, p.Retry, func() error {
		attempt := func() (T, error) {
			callCtx, cancel := withTimeout(ctx, p.Timeout)
			defer cancel()
			v, err := fn(callCtx)
			if err != nil {
				return v, classify(callCtx, p.name(), err)
			}
			return v, nil
		}

		var (
			v   T
			err error
		)
		if p.Breaker != nil {
			v, err = Execute(p.Breaker, attempt)
		} else {
			v, err = attempt()
		}
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (p Policy) name() string {
	if p.Breaker == nil {
		return ""
	}
	return p.Breaker.Name()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// classify reports deadline failures as TIMEOUT tagged with the service name.
func classify(ctx context.Context, service string, err error) error {
	if apperrors.IsCode(err, apperrors.Timeout) {
		return err
	}
	deadline := stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded)
	if s, ok := status.FromError(err); ok && s.Code() == codes.DeadlineExceeded {
		deadline = true
	}
	if !deadline {
		return err
	}
	timeout := apperrors.Wrap(err, apperrors.Timeout, "collaborator call timed out")
	if service != "" {
		timeout.WithMetadata("service", service)
	}
	return timeout
}
