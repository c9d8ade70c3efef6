// Package inventory implements the order transaction engine: recipe-driven
// availability and atomic, stock-checked order commits.
package inventory

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"cafepos/internal/events"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 25 * time.Millisecond
	defaultLockTimeout = 5 * time.Second
)

// Options tunes an Engine. Zero values select sensible defaults.
type Options struct {
	// MaxAttempts bounds how many times a transaction is run when it fails transiently.
	MaxAttempts int
	// BaseBackoff is the delay before the second attempt; it doubles per attempt.
	BaseBackoff time.Duration
	// LockTimeout bounds how long a commit waits on ingredient row locks (postgres only).
	LockTimeout time.Duration
	Publisher   events.Publisher
	Now         func() time.Time
}

// Engine owns every code path that reads or mutates ingredient stock.
type Engine struct {
	db     *gorm.DB
	opts   Options
	ledger *Ledger
	sleep  func(time.Duration)
}

// New builds an Engine over db.
func New(db *gorm.DB, opts Options) (*Engine, error) {
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaultBackoff
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		db:     db,
		opts:   opts,
		ledger: &Ledger{db: db},
		sleep:  time.Sleep,
	}, nil
}

// Ledger exposes the stock ledger backing the engine.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

func (e *Engine) isPostgres() bool {
	return isPostgres(e.db)
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector != nil && db.Dialector.Name() == "postgres"
}

// snapshotOptions returns transaction options giving reads a single snapshot.
// SQLite transactions are already serialized.
func (e *Engine) snapshotOptions() []*sql.TxOptions {
	if !e.isPostgres() {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}

// Transact runs fn in a transaction with the engine's lock timeout and retry
// policy. Stock changes made outside CommitOrder go through here so they obey
// the same locking discipline.
func (e *Engine) Transact(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	ctx = context.WithoutCancel(ctx)
	return e.retry(ctx, op, func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := e.applyLockTimeout(tx); err != nil {
				return err
			}
			return fn(tx)
		})
	})
}
