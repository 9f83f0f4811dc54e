package ingest

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
)

type RetryPolicy struct {
	// MaxAttempts counts every try, the first one included.
	MaxAttempts int
	// BaseDelay precedes the second attempt and doubles before each following one.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// AttemptTimeout bounds a single attempt; zero leaves attempts unbounded.
	AttemptTimeout time.Duration
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	} else {
		b.MaxInterval = time.Duration(1<<63 - 1)
	}
	b.Reset()
	return b
}

type RetryObserver func(attempt int, delay time.Duration, err error)

type Retrier struct {
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetrier(policy RetryPolicy) *Retrier {
	return &Retrier{
		policy: policy,
		sleep:  sleepContext,
	}
}

// Do runs fn until it succeeds, fails permanently, exhausts the attempts or ctx ends.
// When ctx ends the returned error is ctx.Err(), so callers can tell cancellation from failure.
func (r *Retrier) Do(
	ctx context.Context,
	fn func(ctx context.Context) error,
	onRetry RetryObserver,
) (attempts int, err error) {
	b := r.policy.newBackOff()
	for attempt := 1; ; attempt++ {
		err = r.attempt(ctx, fn)
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if KindOf(err) != KindTransient || attempt >= r.policy.maxAttempts() {
			return attempt, err
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return attempt, err
		}
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return attempt, sleepErr
		}
	}
}

func (r *Retrier) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if r.policy.AttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, r.policy.AttemptTimeout)
	}
	defer cancel()

	err := fn(attemptCtx)
	if err != nil && ctx.Err() == nil && attemptCtx.Err() != nil && KindOf(err) != KindTransient {
		return Transient(errors.Wrap(err, "attempt timed out"))
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
