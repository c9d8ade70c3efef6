package inventory

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	applog "cafepos/internal/log"
)

// Postgres SQLSTATE codes that mean "run the transaction again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// IsTransient reports whether err may succeed if the whole transaction is retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientStore) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// retry runs fn until it succeeds, fails permanently, or exhausts the attempt
// budget. Validation errors are returned untouched; every other failure is
// reported as ErrStoreFailure. Exhausted retries also match ErrTransientStore
// so callers can tell contention from a broken store.
func (e *Engine) retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if IsUserError(err) {
			return err
		}
		if !IsTransient(err) {
			applog.Error(ctx, "transaction failed", "op", op, "attempt", attempt, "error", err)
			return fmt.Errorf("%w: %s: %v", ErrStoreFailure, op, err)
		}

		lastErr = err
		if attempt < e.opts.MaxAttempts {
			delay := e.backoff(attempt)
			applog.Warn(ctx, "transient failure, retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)
			e.sleep(delay)
		}
	}

	applog.Error(ctx, "transaction retries exhausted", "op", op, "attempts", e.opts.MaxAttempts, "error", lastErr)
	return fmt.Errorf("%w: %w: %s gave up after %d attempts: %v", ErrStoreFailure, ErrTransientStore, op, e.opts.MaxAttempts, lastErr)
}

// backoff doubles BaseBackoff per attempt and adds up to half of it again as jitter.
func (e *Engine) backoff(attempt int) time.Duration {
	delay := e.opts.BaseBackoff << (attempt - 1)
	if half := int64(delay / 2); half > 0 {
		delay += time.Duration(rand.Int64N(half))
	}
	return delay
}
