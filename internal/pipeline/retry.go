package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/vecingest/internal/remote"
)

const (
	MaxRetries       = 3
	DefaultRetryBase = time.Second
	maxBackoff       = 30 * time.Second
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *remote.RetryableError
	if errors.As(err, &retryErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = DefaultRetryBase
	}
	d := base << uint(attempt)
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

// withRetry runs op up to o.maxRetries times. Each call gets its own timeout
// when one is configured; the parent context bounds the whole loop.
func (o *Orchestrator) withRetry(ctx context.Context, stage Stage, log *slog.Logger, op func(context.Context) error) error {
	attempts := max(o.maxRetries, 1)
	var err error
	for attempt := range attempts {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if o.stageTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		}
		err = op(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || ctx.Err() != nil || attempt == attempts-1 {
			return err
		}
		wait := Backoff(o.retryBase, attempt)
		log.Warn("retryable error", "stage", stage, "attempt", attempt+1, "wait", wait, "error", err)
		o.metrics.retried(stage)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return err
		}
	}
	return err
}
