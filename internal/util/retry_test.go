package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), Backoff{Retries: 1, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errFlaky
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if got != 42 || calls != 2 {
		t.Fatalf("expected 42 after 2 calls, got %d after %d", got, calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), Backoff{Retries: 1, BaseDelay: time.Millisecond}, func(context.Context) (string, error) {
		calls++
		return "", errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected wrapped flaky error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Retry(ctx, Backoff{Retries: 3, BaseDelay: time.Second}, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt on canceled context, got %d", calls)
	}
}
