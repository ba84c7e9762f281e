package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Busy-retry policy. WebMark runs one writer (the keeper) alongside the
// change watcher's polling reads on the same file, so lock contention is
// rare and short-lived; a few linear backoff steps are enough to ride it
// out.
const (
	busyAttempts = 3
	busyBackoff  = 100 * time.Millisecond
)

// IsBusy reports whether err is SQLite lock contention. The driver
// surfaces these conditions as strings, so matching is textual:
// SQLITE_BUSY, "database is locked", "database table is locked".
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx runs fn inside a transaction, retrying the whole transaction on
// lock contention. An error from fn rolls back and is returned
// unwrapped, so callers can errors.Is against their own sentinels.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return withBusyRetry(ctx, "RunTx", func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("dbopen: begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbopen: commit: %w", err)
		}
		return nil
	})
}

// Exec runs a single statement under the same busy-retry policy.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := withBusyRetry(ctx, "Exec", func() error {
		var err error
		res, err = db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func withBusyRetry(ctx context.Context, op string, fn func() error) error {
	for i := range busyAttempts {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsBusy(err) || i == busyAttempts-1 {
			return err
		}
		if err := sleepCtx(ctx, time.Duration(i+1)*busyBackoff); err != nil {
			return fmt.Errorf("dbopen: %s interrupted waiting out a lock: %w", op, err)
		}
	}
	return fmt.Errorf("dbopen: %s: retries exhausted", op)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
