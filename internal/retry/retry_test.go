package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/idcard-check/internal/logging"
)

type transientError struct{}

func (transientError) Error() string   { return "transient" }
func (transientError) Timeout() bool   { return true }
func (transientError) Temporary() bool { return true }

var fast = Policy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

func TestDoRetriesTransientErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fast, zap.NewNop(), "test.operation", "req-1", func() error {
		attempts++
		if attempts < 3 {
			return transientError{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fast, zap.NewNop(), "test.operation", "req-2", func() error {
		attempts++
		return errors.New("boom")
	})

	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "test.operation" || opErr.RequestID != "req-2" {
		t.Fatalf("unexpected metadata: %+v", opErr)
	}
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fast, zap.NewNop(), "test.operation", "", func() error {
		attempts++
		return transientError{}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != fast.Attempts {
		t.Fatalf("expected %d attempts, got %d", fast.Attempts, attempts)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, Policy{Attempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}, zap.NewNop(), "op", "", func() error {
		attempts++
		cancel()
		return transientError{}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestSingleAttemptPolicy(t *testing.T) {
	if err := Do(context.Background(), Policy{Attempts: 1}, zap.NewNop(), "op", "", func() error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)) {
		t.Fatal("deadline should be transient")
	}
	if !IsTransient(transientError{}) {
		t.Fatal("timeout error should be transient")
	}
	if IsTransient(errors.New("plain")) || IsTransient(nil) {
		t.Fatal("plain errors are permanent")
	}
}
