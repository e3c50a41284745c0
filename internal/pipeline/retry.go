package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
)

// Default retry policy knobs.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 500 * time.Millisecond
)

// RetryPolicy bounds the local retries a stage may spend on transient
// failures before the error becomes a stage failure.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}

	if p.BackoffBase <= 0 {
		p.BackoffBase = DefaultBackoffBase
	}

	return p
}

// retry runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. Backoff doubles per attempt; a provider
// supplied retry-after hint extends the wait when it is longer.
func retry[T any](
	ctx context.Context,
	log *logger.Logger,
	policy RetryPolicy,
	label string,
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	policy = policy.normalized()

	for attempt := 1; ; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}

		if !core.IsRetryable(err) || attempt >= policy.MaxAttempts {
			return zero, err
		}

		delay := policy.BackoffBase << (attempt - 1)
		if hint := core.RetryAfterOf(err); hint > delay {
			delay = hint
		}

		log.Warn(
			"%s attempt %d/%d failed (%s), retrying in %s: %v",
			label, attempt, policy.MaxAttempts, core.KindOf(err), delay, err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, fmt.Errorf("%s retry wait cancelled: %w", label, ctx.Err())
		}
	}
}
