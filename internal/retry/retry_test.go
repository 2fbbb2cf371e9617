package retry

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2.0,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), "test", fastPolicy(), nil, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	attempts := 0
	wantErr := fmt.Errorf("persistent")
	err := Do(context.Background(), "test", fastPolicy(), nil, func(ctx context.Context) error {
		attempts++
		return wantErr
	})
	if err != wantErr {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoHonorsRetryAfterHint(t *testing.T) {
	hintUsed := false
	hint := func(err error) (time.Duration, bool) {
		hintUsed = true
		return 2 * time.Millisecond, true
	}

	start := time.Now()
	attempts := 0
	err := Do(context.Background(), "test", fastPolicy(), hint, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return fmt.Errorf("rate limited")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !hintUsed {
		t.Error("retry-after hint not consulted")
	}
	if elapsed := time.Since(start); elapsed < 2*time.Millisecond {
		t.Errorf("retried too soon: %v", elapsed)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, "test", Policy{
		MaxAttempts:     5,
		BaseDelay:       time.Hour,
		MaxDelay:        time.Hour,
		ExponentialBase: 2.0,
	}, nil, func(ctx context.Context) error {
		attempts++
		cancel()
		return fmt.Errorf("failing")
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDoSingleAttemptPolicy(t *testing.T) {
	attempts := 0
	Do(context.Background(), "test", Policy{MaxAttempts: 1}, nil, func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("fail")
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
