package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var unavailable = status.Error(codes.Unavailable, "connection refused")

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{unavailable, true},
		{status.Error(codes.DeadlineExceeded, "slow"), true},
		{status.Error(codes.ResourceExhausted, "busy"), false},
		{status.Error(codes.PermissionDenied, "denied"), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestBreakerOpensOnTransportFailures(t *testing.T) {
	b := New(Config{Threshold: 2, ResetTimeout: time.Hour})
	b.Record(unavailable)
	if b.State() != Closed {
		t.Fatalf("state after one failure = %v", b.State())
	}
	b.Record(unavailable)
	if b.State() != Open {
		t.Fatalf("state = %v, want open", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("Allow() = %v, want ErrOpen", err)
	}
}

func TestBreakerIgnoresApplicationErrors(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Hour})
	for i := 0; i < 5; i++ {
		b.Record(status.Error(codes.ResourceExhausted, "busy"))
	}
	if b.State() != Closed {
		t.Errorf("application errors opened the breaker")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	var transitions []State
	b := New(Config{Threshold: 1, ResetTimeout: time.Millisecond, HalfOpenSuccesses: 1}).
		WithHook(func(_, to State) { transitions = append(transitions, to) })
	b.Record(unavailable)
	time.Sleep(5 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after reset timeout = %v", err)
	}
	b.Record(nil)
	want := []State{Open, HalfOpen, Closed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestCall(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Hour})
	v, err := Call(b, func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("Call = %d, %v", v, err)
	}
	if _, err := Call(b, func() (int, error) { return 0, unavailable }); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Call(b, func() (int, error) { return 1, nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("Call on open breaker = %v, want ErrOpen", err)
	}
}

func TestRetry(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return unavailable
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("Retry = %v after %d calls", err, calls)
	}

	calls = 0
	denied := status.Error(codes.PermissionDenied, "no")
	if err := Retry(context.Background(), cfg, func() error { calls++; return denied }); err != denied || calls != 1 {
		t.Errorf("non-retryable: err %v, calls %d", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Retry(ctx, cfg, func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Retry with cancelled ctx = %v", err)
	}
}

func TestBackoffDelayBounded(t *testing.T) {
	cfg := DefaultRetryConfig().withDefaults()
	for attempt := 0; attempt < 10; attempt++ {
		d := backoffDelay(cfg, attempt)
		if max := time.Duration(float64(cfg.MaxDelay) * (1 + cfg.JitterFactor/2)); d > max {
			t.Errorf("attempt %d delay %v exceeds %v", attempt, d, max)
		}
	}
}
