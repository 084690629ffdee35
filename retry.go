package pgmq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// RetryConfig holds the PgxStore policy for retrying transient database
// errors: connection failures (PostgreSQL error class 08), serialization
// failures (40001) and deadlocks (40P01). Retries use exponential backoff.
//
// This policy lives in the store adapter, not the Client: the client layer
// never retries, so a substitute Store decides its own transient-error
// handling.
type RetryConfig struct {
	// Disabled turns retries off entirely; operations fail on first error.
	Disabled bool

	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth of the backoff.
	MaxBackoff time.Duration

	// BackoffMultiplier scales the backoff between attempts.
	BackoffMultiplier float64
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (r RetryConfig) validate() error {
	if r.Disabled {
		return nil
	}
	if r.MaxAttempts <= 0 {
		return fmt.Errorf("%w: retry max attempts must be positive", ErrInvalidConfig)
	}
	if r.InitialBackoff <= 0 {
		return fmt.Errorf("%w: retry initial backoff must be positive", ErrInvalidConfig)
	}
	if r.MaxBackoff <= 0 {
		return fmt.Errorf("%w: retry max backoff must be positive", ErrInvalidConfig)
	}
	if r.BackoffMultiplier <= 0 {
		return fmt.Errorf("%w: retry backoff multiplier must be positive", ErrInvalidConfig)
	}
	return nil
}

// IsRetryableError reports whether err is a transient database failure worth
// retrying: serialization failure (40001), deadlock (40P01) or a connection
// error (class 08).
func IsRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01" || strings.HasPrefix(pgErr.Code, "08")
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// withRetry executes operation under the store's retry policy, respecting
// context cancellation between attempts.
func (s *PgxStore) withRetry(ctx context.Context, operation func(context.Context) error) error {
	if s.retry.Disabled {
		return operation(ctx)
	}

	var lastErr error
	backoff := s.retry.InitialBackoff

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return err
		}

		lastErr = err
		s.logger.Warnf("Retryable error occurred (attempt %d/%d): %v",
			attempt+1, s.retry.MaxAttempts, err)

		if attempt == s.retry.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * s.retry.BackoffMultiplier)
		if backoff > s.retry.MaxBackoff {
			backoff = s.retry.MaxBackoff
		}
	}

	return lastErr
}
