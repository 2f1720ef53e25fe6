package utils

import (
	"context"
	"database/sql/driver"
	"errors"
	"math/rand"
	"net"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

// RetryClass is the explicit retry policy: an error is either terminal or
// retryable, decided by type, never by message sniffing.
type RetryClass int

const (
	ClassTerminal RetryClass = iota
	ClassRetryable
)

// MySQL server errors that signal a lost race with a concurrent writer.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// ErrWriteConflict marks a store write that lost a race with a concurrent
// writer and is safe to retry from the top of its transaction. Services wrap
// race-specific failures (such as losing a unique-index insert race) in it;
// a generic duplicate key stays terminal.
var ErrWriteConflict = errors.New("write_conflict")

// Classify tags an error as retryable or terminal. Write conflicts
// (deadlock, lock wait timeout), dropped connections and deadlines are
// retryable; everything else, including validation and version conflicts,
// propagates immediately.
func Classify(err error) RetryClass {
	if err == nil {
		return ClassTerminal
	}

	if errors.Is(err, ErrWriteConflict) {
		return ClassRetryable
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return ClassRetryable
		}
		return ClassTerminal
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassRetryable
	}

	return ClassTerminal
}

// WithRetry runs op up to maxAttempts times, backing off exponentially with
// jitter between attempts (backoffBase * 2^attempt + random jitter).
// Terminal errors return on first occurrence; a still-retryable error after
// the last attempt is returned for the caller to surface as unavailable.
func WithRetry(op func() error, maxAttempts int, backoffBase time.Duration) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if Classify(err) != ClassRetryable {
			return err
		}
		if attempt < maxAttempts-1 && backoffBase > 0 {
			sleep := backoffBase << uint(attempt)
			sleep += time.Duration(rand.Int63n(int64(backoffBase)))
			time.Sleep(sleep)
		}
	}
	return err
}
