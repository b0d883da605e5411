package circuit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		MaxFailures:     2,
		SuccessRequired: 2,
		Timeout:         10 * time.Millisecond,
		ResetTimeout:    time.Minute,
	}
}

var errBoom = errors.New("boom")

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	err := cb.Execute(ctx, func() error {
		t.Fatal("function must not run while circuit is open")
		return nil
	})
	if err == nil {
		t.Fatal("expected rejection while open")
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}

	// Wait past the open timeout so the breaker probes again
	time.Sleep(15 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("half-open call %d failed: %v", i, err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed after recovery", cb.GetState())
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}
	time.Sleep(15 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return errBoom })

	if cb.GetState() != StateOpen {
		t.Errorf("state = %v, want open after half-open failure", cb.GetState())
	}
}

func TestExecuteWithResult(t *testing.T) {
	cb := New(testConfig())

	got, err := ExecuteWithResult(context.Background(), cb, func() (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q, want ok", got)
	}
}

func TestReset(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}
	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed after reset", cb.GetState())
	}
	if stats := cb.GetStats(); stats.Failures != 0 {
		t.Errorf("failures = %d, want 0 after reset", stats.Failures)
	}
}
