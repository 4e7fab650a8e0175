package store

import (
	"context"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

// RetryPolicy bounds how reconciliation retries a transiently locked
// database before giving up.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

var defaultRetryPolicy = RetryPolicy{Attempts: 5, Backoff: 50 * time.Millisecond}

// withRetry runs fn, retrying with doubling backoff while it fails with a
// transient SQLite lock error. Any other error returns immediately, and
// the final attempt's failure is returned without a trailing wait.
func withRetry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	delay := policy.Backoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !isTransient(err) || attempt >= policy.Attempts {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
}

func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
