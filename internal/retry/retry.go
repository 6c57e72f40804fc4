// Package retry retries operations that fail with transient errors, backing
// off exponentially between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/idcard-check/internal/logging"
)

// Policy bounds the attempts and the backoff between them.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Default suits calls to Redis and Postgres on a local network.
var Default = Policy{Attempts: 3, InitialBackoff: 50 * time.Millisecond, MaxBackoff: time.Second}

// Do runs fn until it succeeds, fails permanently or the attempts run out.
// Failures come back as *logging.OperationError tagged with operation and
// requestID.
func Do(ctx context.Context, p Policy, logger *zap.Logger, operation, requestID string, fn func() error) error {
	if p.Attempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := p.InitialBackoff
	opLogger := logging.WithOperation(logger, operation, requestID)
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= p.MaxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !IsTransient(err) || attempt == p.Attempts-1 {
			opLogger.Error("operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

// IsTransient reports whether err is worth retrying: deadlines, timeouts and
// errors that call themselves temporary.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
