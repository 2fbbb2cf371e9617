/**
 * Retry helper for remote engine calls
 *
 * Exponential backoff with a delay ceiling and bounded attempts. Rate-limit
 * failures that carry an engine-provided wait hint honor the hint instead of
 * the computed backoff. Retries apply only to remote calls; local heuristics
 * never go through this path.
 */

package retry

import (
	"context"
	"log"
	"time"
)

// Policy holds backoff parameters for one class of remote call.
type Policy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
}

// DefaultPolicy matches the engine clients' calibration: 3 retries,
// 2s base, 60s ceiling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		BaseDelay:       2 * time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
	}
}

// RetryAfterFunc extracts an engine-provided wait hint from an error.
// Returning ok=false means the error carries no hint and the computed
// backoff applies.
type RetryAfterFunc func(err error) (time.Duration, bool)

// Do runs op under the policy, sleeping between attempts. The last error is
// returned once attempts are exhausted. Context cancellation aborts the wait
// immediately.
func Do(ctx context.Context, name string, p Policy, retryAfter RetryAfterFunc, op func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.ExponentialBase <= 1 {
		p.ExponentialBase = 2.0
	}

	var lastErr error
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Printf("%s succeeded after %d attempts", name, attempt)
			}
			return nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		wait := delay
		if retryAfter != nil {
			if hint, ok := retryAfter(err); ok && hint > 0 {
				wait = hint
			}
		}
		if wait > p.MaxDelay {
			wait = p.MaxDelay
		}

		log.Printf("%s failed (attempt %d/%d): %v. Retrying in %v",
			name, attempt, p.MaxAttempts, err, wait)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * p.ExponentialBase)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	log.Printf("%s failed after %d attempts: %v", name, p.MaxAttempts, lastErr)
	return lastErr
}
