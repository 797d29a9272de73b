package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/mathreel/internal/render"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	tests := []struct {
		attempt  int
		min, max time.Duration
	}{
		{0, time.Second, 1500 * time.Millisecond},
		{1, 2 * time.Second, 3 * time.Second},
		{3, 8 * time.Second, 12 * time.Second},
		{10, 30 * time.Second, 45 * time.Second},
		{100, 30 * time.Second, 45 * time.Second},
	}
	for _, tt := range tests {
		for range 20 {
			d := p.Backoff(tt.attempt)
			if d < tt.min || d >= tt.max {
				t.Fatalf("attempt %d: expected backoff in [%s, %s), got %s", tt.attempt, tt.min, tt.max, d)
			}
		}
	}
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	var retries []int
	err := fastPolicy(3).Do(context.Background(), "op", func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return render.NewTransient("op", errors.New("busy"))
		}
		return nil
	}, func(attempt int, err error) { retries = append(retries, attempt) })
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("expected retries [1 2], got %v", retries)
	}
}

func TestDo_FatalIsNotRetried(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), "op", func(ctx context.Context, attempt int) error {
		calls++
		return render.Fatalf("op", "bad input")
	}, nil)
	if err == nil || render.IsTransient(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustionIsFatal(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "stage", func(ctx context.Context, attempt int) error {
		calls++
		return render.NewTransient("op", context.DeadlineExceeded)
	}, nil)
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if render.IsTransient(err) {
		t.Error("expected exhausted retries to be fatal")
	}
}

func TestDo_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	err := p.Do(ctx, "op", func(ctx context.Context, attempt int) error {
		cancel()
		return render.NewTransient("op", errors.New("busy"))
	}, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
}
