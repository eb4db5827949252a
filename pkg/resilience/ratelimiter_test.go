package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiterAllowBurst(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 3})
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("expected allow on call %d", i)
		}
	}
	if l.Allow() {
		t.Fatal("expected rejection after burst exhausted")
	}
	if err := l.Call(context.Background(), passing); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestLimiterUnlimited(t *testing.T) {
	l := NewLimiter(LimiterOpts{})
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatalf("unlimited limiter rejected call %d", i)
		}
	}
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	l.Allow()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.CallWait(ctx, passing); err == nil {
		t.Fatal("expected wait to fail before a token arrives")
	}
}

func TestLimiterCallWait(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1000, Burst: 1})
	called := 0
	for i := 0; i < 3; i++ {
		if err := l.CallWait(context.Background(), func(context.Context) error { called++; return nil }); err != nil {
			t.Fatal(err)
		}
	}
	if called != 3 {
		t.Errorf("called = %d", called)
	}
}
