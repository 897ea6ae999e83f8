package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/carwise/internal/service"
)

func fastOpts() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		}, fastOpts())

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("exhausting attempts returns ErrMaxRetries", func(t *testing.T) {
		err := WithRetry(context.Background(), func() error {
			return errors.New("persistent")
		}, fastOpts())

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMaxRetries))
	})

	t.Run("not-found is never retried", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), func() error {
			attempts++
			return ErrNotFound
		}, fastOpts())

		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, 1, attempts)
	})

	t.Run("parse failures are never retried", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), func() error {
			attempts++
			return ErrParse
		}, fastOpts())

		assert.True(t, errors.Is(err, ErrParse))
		assert.Equal(t, 1, attempts)
	})

	t.Run("explicitly non-retryable errors surface immediately", func(t *testing.T) {
		attempts := 0
		err := WithRetry(context.Background(), func() error {
			attempts++
			return &RetryableError{Err: errors.New("hard failure"), Retryable: false}
		}, fastOpts())

		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("canceled context stops the loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := WithRetry(ctx, func() error {
			return errors.New("transient")
		}, fastOpts())

		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(ErrParse))
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: false}))
	assert.False(t, IsRetryable(errors.New("unclassified")))
}
