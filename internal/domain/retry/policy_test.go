package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"workify/services/conversation-api/internal/domain/retry"
)

func TestPolicy_CalculateDelay(t *testing.T) {
	tests := []struct {
		name     string
		policy   retry.Policy
		attempt  int
		expected time.Duration
	}{
		{
			name:     "attempt zero never waits",
			policy:   retry.Policy{BackoffStrategy: retry.BackoffFixed, InitialDelay: time.Second},
			attempt:  0,
			expected: 0,
		},
		{
			name:     "fixed",
			policy:   retry.Policy{BackoffStrategy: retry.BackoffFixed, InitialDelay: 100 * time.Millisecond},
			attempt:  4,
			expected: 100 * time.Millisecond,
		},
		{
			name:     "linear",
			policy:   retry.Policy{BackoffStrategy: retry.BackoffLinear, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second},
			attempt:  3,
			expected: 300 * time.Millisecond,
		},
		{
			name:     "exponential",
			policy:   retry.Policy{BackoffStrategy: retry.BackoffExponential, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second},
			attempt:  3,
			expected: 400 * time.Millisecond,
		},
		{
			name:     "exponential capped",
			policy:   retry.Policy{BackoffStrategy: retry.BackoffExponential, InitialDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond},
			attempt:  5,
			expected: 250 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.CalculateDelay(tt.attempt); got != tt.expected {
				t.Errorf("CalculateDelay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestExecuteWithResult_RetriesRetryableErrors(t *testing.T) {
	errTransient := errors.New("transient")
	policy := retry.Policy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffStrategy: retry.BackoffFixed}

	calls := 0
	got, err := retry.ExecuteWithResult(context.Background(), policy, func(err error) bool {
		return errors.Is(err, errTransient)
	}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		if attempt < 2 {
			return 0, errTransient
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Fatalf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestExecuteWithResult_StopsOnPermanentError(t *testing.T) {
	errPermanent := errors.New("permanent")
	policy := retry.Policy{MaxRetries: 5, InitialDelay: time.Millisecond}

	calls := 0
	_, err := retry.ExecuteWithResult(context.Background(), policy, func(error) bool { return false }, func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", errPermanent
	})

	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestExecuteWithResult_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retry.ExecuteWithResult(ctx, retry.DefaultPolicy(), nil, func(ctx context.Context, attempt int) (int, error) {
		t.Fatal("fn must not run on a cancelled context")
		return 0, nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
