package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "lost update", err: fmt.Errorf("%w: changed", ErrTransientStore), want: true},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "deadlock", err: fmt.Errorf("update: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "sqlite busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, want: true},
		{name: "sqlite locked", err: fmt.Errorf("read: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), want: true},
		{name: "sqlite constraint", err: sqlite3.Error{Code: sqlite3.ErrConstraint}, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func newRetryEngine(t *testing.T, attempts int) (*Engine, *[]time.Duration) {
	t.Helper()
	engine, err := New(newTestDatabase(t), Options{MaxAttempts: attempts, BaseBackoff: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	var delays []time.Duration
	engine.sleep = func(d time.Duration) { delays = append(delays, d) }
	return engine, &delays
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	t.Parallel()

	engine, delays := newRetryEngine(t, 3)
	calls := 0
	err := engine.retry(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(*delays) != 2 {
		t.Fatalf("expected 2 backoffs, got %v", *delays)
	}
	if first := (*delays)[0]; first < 10*time.Millisecond || first >= 15*time.Millisecond {
		t.Fatalf("first backoff %v outside [10ms, 15ms)", first)
	}
	if second := (*delays)[1]; second < 20*time.Millisecond || second >= 30*time.Millisecond {
		t.Fatalf("second backoff %v outside [20ms, 30ms)", second)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	engine, delays := newRetryEngine(t, 2)
	calls := 0
	err := engine.retry(context.Background(), "test", func() error {
		calls++
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	})
	if !errors.Is(err, ErrStoreFailure) || !errors.Is(err, ErrTransientStore) {
		t.Fatalf("expected exhausted store failure, got %v", err)
	}
	if calls != 2 || len(*delays) != 1 {
		t.Fatalf("expected 2 attempts and 1 backoff, got %d and %d", calls, len(*delays))
	}
}

func TestRetryDoesNotRepeatPermanentFailures(t *testing.T) {
	t.Parallel()

	engine, _ := newRetryEngine(t, 5)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "store failure", err: errors.New("disk full"), want: ErrStoreFailure},
		{name: "insufficient stock", err: &InsufficientStockError{IngredientID: 1}, want: ErrInsufficientStock},
		{name: "unknown product", err: fmt.Errorf("%w: 7", ErrUnknownProduct), want: ErrUnknownProduct},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := engine.retry(context.Background(), "test", func() error {
				calls++
				return tt.err
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if calls != 1 {
				t.Fatalf("expected a single attempt, got %d", calls)
			}
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, Options{}); err == nil {
		t.Fatal("expected error for nil database")
	}

	engine, err := New(newTestDatabase(t), Options{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if engine.opts.MaxAttempts != defaultMaxAttempts || engine.opts.BaseBackoff != defaultBackoff {
		t.Fatalf("unexpected defaults: %+v", engine.opts)
	}
	if engine.opts.Publisher == nil || engine.opts.Now == nil {
		t.Fatal("expected publisher and clock defaults")
	}
}
