package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/example/student-portal/internal/logging"
)

const (
	defaultRetryAttempts  = 3
	defaultInitialBackoff = 50 * time.Millisecond
	defaultMaxBackoff     = time.Second
)

// runWithRetry runs fn up to attempts times while it fails with a transient
// error. The final error, if any, is wrapped in a logging.OperationError.
func runWithRetry(ctx context.Context, logger *zap.Logger, attempts int, initial, maxBackoff time.Duration, operation, requestID string, fn func() error) error {
	backoff := retry.NewExponential(max(initial, time.Millisecond))
	backoff = retry.WithCappedDuration(max(maxBackoff, initial), backoff)
	backoff = retry.WithMaxRetries(uint64(max(attempts-1, 0)), backoff)

	opLogger := logging.WithOperation(logger, operation, requestID)
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn()
		if err == nil {
			if attempt > 1 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		if isTransientError(err) {
			opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt))
			return retry.RetryableError(err)
		}
		return err
	})
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmailTaken) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// connection exceptions, serialization failures, deadlocks, cannot connect now
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "40001" || pgErr.Code == "40P01" || pgErr.Code == "57P03"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockWaitTimeout || myErr.Number == mysqlDeadlock || myErr.Number == mysqlTooManyConns
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var temporary interface{ Temporary() bool }
	return errors.As(err, &temporary) && temporary.Temporary()
}
