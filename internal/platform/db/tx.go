package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrConcurrentConflict is returned once a serializable transaction has
// exhausted its retry budget on serialization failures.
var ErrConcurrentConflict = errors.New("platform/db: concurrent update conflict")

// retryHook observes each serialization retry. Set once at startup.
var retryHook func()

// ObserveRetries registers fn to run before every serialization retry.
func ObserveRetries(fn func()) {
	retryHook = fn
}

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return run(ctx, pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// WithSerializableTx executes fn inside a serializable transaction and retries
// it a bounded number of times with backoff when PostgreSQL reports a
// serialization failure or deadlock. The callback must be safe to re-run.
func WithSerializableTx(ctx context.Context, pool *pgxpool.Pool, maxRetries int, fn func(pgx.Tx) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := 10 * time.Millisecond
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = run(ctx, pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if err == nil || !IsSerializationFailure(err) {
			return err
		}
		if retryHook != nil {
			retryHook()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", ErrConcurrentConflict, err)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsSerializationFailure reports whether err is a transient conflict that is
// safe to retry (serialization_failure or deadlock_detected).
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func run(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
