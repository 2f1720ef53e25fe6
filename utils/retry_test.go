package utils

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want RetryClass
	}{
		{"nil", nil, ClassTerminal},
		{"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, ClassRetryable},
		{"lock wait timeout", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, ClassRetryable},
		{"duplicate key", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, ClassTerminal},
		{"wrapped deadlock", fmt.Errorf("tx: %w", &mysql.MySQLError{Number: 1213}), ClassRetryable},
		{"write conflict", fmt.Errorf("claim day: %w", ErrWriteConflict), ClassRetryable},
		{"bad conn", driver.ErrBadConn, ClassRetryable},
		{"invalid conn", mysql.ErrInvalidConn, ClassRetryable},
		{"deadline", context.DeadlineExceeded, ClassRetryable},
		{"plain error", errors.New("validation failed"), ClassTerminal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestWithRetryTerminalFailsImmediately(t *testing.T) {
	boom := errors.New("constraint violated")
	calls := 0
	err := WithRetry(func() error {
		calls++
		return boom
	}, 5, time.Microsecond)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRecoversFromWriteConflict(t *testing.T) {
	calls := 0
	err := WithRetry(func() error {
		calls++
		if calls < 3 {
			return &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
		}
		return nil
	}, 3, time.Microsecond)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustionReturnsLastError(t *testing.T) {
	conflict := &mysql.MySQLError{Number: 1205}
	calls := 0
	err := WithRetry(func() error {
		calls++
		return conflict
	}, 3, time.Microsecond)

	var myErr *mysql.MySQLError
	require.ErrorAs(t, err, &myErr)
	assert.Equal(t, uint16(1205), myErr.Number)
	assert.Equal(t, 3, calls)
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	require.NoError(t, WithRetry(func() error {
		calls++
		return nil
	}, 3, time.Second)) // backoff never reached
	assert.Equal(t, 1, calls)
}

func TestWithRetryClampsAttempts(t *testing.T) {
	calls := 0
	_ = WithRetry(func() error {
		calls++
		return &mysql.MySQLError{Number: 1213}
	}, 0, 0)
	assert.Equal(t, 1, calls)
}
