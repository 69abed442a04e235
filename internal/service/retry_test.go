package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"multimodal-rag/internal/domain"
)

func TestBackoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{attempt: 0, min: 0, max: 0},
		{attempt: 1, min: 75 * time.Millisecond, max: 125 * time.Millisecond},
		{attempt: 2, min: 150 * time.Millisecond, max: 250 * time.Millisecond},
		{attempt: 3, min: 300 * time.Millisecond, max: 500 * time.Millisecond},
		{attempt: 10, min: 750 * time.Millisecond, max: 1250 * time.Millisecond},
		{attempt: 100, min: 750 * time.Millisecond, max: 1250 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			for range 50 {
				got := p.Backoff(tt.attempt)
				if got < tt.min || got > tt.max {
					t.Fatalf("Backoff(%d) = %v, want in [%v, %v]", tt.attempt, got, tt.min, tt.max)
				}
			}
		})
	}

	if got := (RetryPolicy{}).Backoff(3); got != 0 {
		t.Errorf("zero base delay backoff = %v, want 0", got)
	}
}

func TestWithRetry(t *testing.T) {
	transient := fmt.Errorf("embed: %w", domain.ErrService)
	rejected := fmt.Errorf("embed: %w: %w", domain.ErrService, domain.ErrAuth)
	p := RetryPolicy{MaxAttempts: 3}

	tests := []struct {
		name      string
		failures  []error
		wantCalls int
		wantErr   error
	}{
		{name: "success first try", wantCalls: 1},
		{name: "transient then success", failures: []error{transient, transient}, wantCalls: 3},
		{name: "transient exhausted", failures: []error{transient, transient, transient, transient}, wantCalls: 3, wantErr: domain.ErrService},
		{name: "auth not retried", failures: []error{rejected}, wantCalls: 1, wantErr: domain.ErrAuth},
		{name: "unsupported model not retried", failures: []error{domain.ErrUnsupportedModel}, wantCalls: 1, wantErr: domain.ErrUnsupportedModel},
		{name: "dimension mismatch not retried", failures: []error{&domain.DimensionMismatchError{Want: 2, Got: 3}}, wantCalls: 1, wantErr: domain.ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := withRetry(context.Background(), p, zap.NewNop(), "test", func(context.Context) (string, error) {
				calls++
				if calls <= len(tt.failures) {
					return "", tt.failures[calls-1]
				}
				return "ok", nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil {
				if err != nil || got != "ok" {
					t.Fatalf("got (%q, %v), want (ok, nil)", got, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}

	calls := 0
	_, err := withRetry(ctx, p, zap.NewNop(), "test", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, domain.ErrService
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, domain.ErrService) {
		t.Errorf("err = %v", err)
	}
}
