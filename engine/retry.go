package engine

import (
	"context"
	"time"
)

// Content type assignment after an upload is retried this many times, with a
// fixed pause between attempts.
const (
	DefaultContentTypeAttempts = 8
	DefaultContentTypeDelay    = 4 * time.Second
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy is a bounded retry with a fixed delay between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration

	// Sleep defaults to a timer-based sleep; tests substitute a fake clock.
	Sleep SleepFunc
}

// ContentTypePolicy returns the policy used for content type assignment.
func ContentTypePolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultContentTypeAttempts,
		Delay:       DefaultContentTypeDelay,
	}
}

// Do calls fn until it succeeds or the attempts are exhausted, returning the
// last error. No delay follows the final attempt.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			return serr
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
