package fetch

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

// RetryPolicy bounds and paces repeated fetch attempts. The wait between
// attempts is flat random jitter in [WaitMin, WaitMax], no exponential growth.
type RetryPolicy struct {
	Attempts uint
	WaitMin  time.Duration
	WaitMax  time.Duration
}

// DefaultRetryPolicy matches the monitor defaults: 40 attempts with a wait
// between 1 and 5 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 40,
		WaitMin:  1 * time.Second,
		WaitMax:  5 * time.Second,
	}
}

// RetryingFetcher decorates a Fetcher with a bounded retry policy. Only
// transport-level failures are retried; parse misses come back from the inner
// fetcher as successful results carrying sentinel values and pass straight
// through. When all attempts are exhausted the last error is propagated.
type RetryingFetcher struct {
	next   Fetcher
	policy RetryPolicy
	logger *zap.Logger
}

func NewRetryingFetcher(next Fetcher, policy RetryPolicy, logger *zap.Logger) *RetryingFetcher {
	if policy.Attempts == 0 {
		policy = DefaultRetryPolicy()
	}
	return &RetryingFetcher{
		next:   next,
		policy: policy,
		logger: logger.Named("retry"),
	}
}

func (r *RetryingFetcher) FetchProduct(ctx context.Context, productURL string) (string, string, error) {
	var name, price string

	opts := []retry.Option{
		retry.Attempts(r.policy.Attempts),
		retry.Delay(r.policy.WaitMin),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// the pass is over once the process is shutting down
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn("retrying fetch",
				zap.String("url", productURL),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	}
	if jitter := r.policy.WaitMax - r.policy.WaitMin; jitter > 0 {
		opts = append(opts,
			retry.MaxJitter(jitter),
			retry.DelayType(retry.CombineDelay(retry.FixedDelay, retry.RandomDelay)))
	} else {
		opts = append(opts, retry.DelayType(retry.FixedDelay))
	}

	err := retry.Do(
		func() error {
			var ferr error
			name, price, ferr = r.next.FetchProduct(ctx, productURL)
			return ferr
		},
		opts...,
	)
	if err != nil {
		return "", "", err
	}
	return name, price, nil
}
