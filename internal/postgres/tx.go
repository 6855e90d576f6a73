package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRetriesExhausted wraps the last transient failure once the retry budget
// is spent. Callers map it to their own contention error.
var ErrRetriesExhausted = errors.New("tx retries exhausted")

const (
	defaultMaxRetries = 3
	initialBackoff    = 50 * time.Millisecond
)

// IsRetryable reports whether the error is a serialization failure, deadlock,
// or lock-timeout that a fresh transaction may get past.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// WithRetry runs fn inside a transaction, retrying transient conflicts with
// exponential backoff plus jitter. Permanent errors (including domain sentinel
// errors returned by fn) pass through on the first attempt.
func WithRetry(ctx context.Context, db *pgxpool.Pool, fn func(pgx.Tx) error) error {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt <= defaultMaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := runTx(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		if attempt == defaultMaxRetries {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(backoff / 4)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func runTx(ctx context.Context, db *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
