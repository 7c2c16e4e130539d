package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBusyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errors.New("database is locked"), true},
		{"table is locked", errors.New("database table is locked"), true},
		{"SQLITE_BUSY", errors.New("sqlite: step: SQLITE_BUSY"), true},
		{"error code 5", errors.New("error (5): database busy"), true},
		{"unrelated error", errors.New("connection refused"), false},
		{"constraint violation", errors.New("UNIQUE constraint failed: loans.book_id"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isBusyError(tt.err))
		})
	}
}

func TestBackoff(t *testing.T) {
	assert.GreaterOrEqual(t, backoff(0), retryBaseDelay)
	assert.Less(t, backoff(0), 2*retryBaseDelay)
	assert.Equal(t, retryMaxDelay, backoff(10))
}

func TestRetryBusy(t *testing.T) {
	t.Run("succeeds on first attempt", func(t *testing.T) {
		attempts := 0
		err := retryBusy(context.Background(), 5, func() error {
			attempts++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retries busy errors until success", func(t *testing.T) {
		attempts := 0
		err := retryBusy(context.Background(), 5, func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		attempts := 0
		err := retryBusy(context.Background(), 5, func() error {
			attempts++
			return errors.New("syntax error")
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		err := retryBusy(context.Background(), 2, func() error {
			attempts++
			return errors.New("SQLITE_BUSY")
		})
		require.Error(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := retryBusy(ctx, 100, func() error {
			return errors.New("database is locked")
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
