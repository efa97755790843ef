package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestRetryTx(t *testing.T) {
	txRetryBackoff = time.Millisecond
	deadlock := &pgconn.PgError{Code: "40P01"}

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := retryTx(context.Background(), func() error {
			calls++
			return deadlock
		})
		assert.Equal(t, maxTxAttempts, calls)
		assert.ErrorIs(t, err, deadlock)
	})

	t.Run("succeeds after a serialization failure", func(t *testing.T) {
		calls := 0
		err := retryTx(context.Background(), func() error {
			calls++
			if calls == 1 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := retryTx(context.Background(), func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retryTx(ctx, func() error {
			calls++
			cancel()
			return deadlock
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
