package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errDial = errors.New("dial tcp: connection refused")

func TestSucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	cfg := DefaultConfig()
	cfg.OnRetry = func(attempt int, err error) {
		retried = append(retried, attempt)
		if err != errDial {
			t.Errorf("OnRetry got %v, want unwrapped dial error", err)
		}
	}

	got, err := DoWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 7 {
			return 0, Retryable(errDial)
		}
		return calls, nil
	})
	if err != nil {
		t.Fatalf("DoWithResult: %v", err)
	}
	if got != 7 {
		t.Errorf("result = %d, want 7", got)
	}
	if calls != 7 {
		t.Errorf("calls = %d, want 7", calls)
	}
	if len(retried) != 6 {
		t.Errorf("OnRetry called %d times, want 6", len(retried))
	}
}

func TestExhausted(t *testing.T) {
	calls := 0
	_, err := DoWithResult(context.Background(), DefaultConfig(), func() (int, error) {
		calls++
		return 0, Retryable(errDial)
	})
	if calls != 7 {
		t.Errorf("calls = %d, want 7", calls)
	}
	if !IsRetryable(err) {
		t.Errorf("exhausted error should stay retryable, got %v", err)
	}
	if !errors.Is(err, errDial) {
		t.Errorf("err = %v, want wrapped dial error", err)
	}
}

func TestPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("404")
	_, err := DoWithResult(context.Background(), DefaultConfig(), func() (int, error) {
		calls++
		return 0, perm
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err != perm {
		t.Errorf("err = %v", err)
	}
}

func TestOnce(t *testing.T) {
	calls := 0
	_, err := DoWithResult(context.Background(), Once(), func() (int, error) {
		calls++
		return 0, Retryable(errDial)
	})
	if calls != 1 || err == nil {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := Config{MaxAttempts: 5, InitialWait: time.Hour, Multiplier: 2}
	_, err := DoWithResult(ctx, cfg, func() (int, error) {
		calls++
		cancel()
		return 0, Retryable(errDial)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoff(t *testing.T) {
	cfg := Config{InitialWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := cfg.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
	if got := DefaultConfig().backoff(3); got != 0 {
		t.Errorf("default backoff = %v, want 0", got)
	}
}
