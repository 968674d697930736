package email

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func isFlaky(err error) bool { return errors.Is(err, errFlaky) }

func TestRetryOnceSucceedsFirstTime(t *testing.T) {
	calls, resets := 0, 0
	got, err := RetryOnce(func() (int, error) {
		calls++
		return 42, nil
	}, isFlaky, func(error) error {
		resets++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, resets)
}

func TestRetryOnceRetriesRetryableFailure(t *testing.T) {
	calls, resets := 0, 0
	got, err := RetryOnce(func() (string, error) {
		calls++
		if calls == 1 {
			return "", errFlaky
		}
		return "ok", nil
	}, isFlaky, func(cause error) error {
		resets++
		assert.ErrorIs(t, cause, errFlaky)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, resets)
}

func TestRetryOnceGivesUpAfterSecondFailure(t *testing.T) {
	calls, resets := 0, 0
	_, err := RetryOnce(func() (int, error) {
		calls++
		return 0, errFlaky
	}, isFlaky, func(error) error {
		resets++
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, resets)
}

func TestRetryOnceDoesNotRetryOtherErrors(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := RetryOnce(func() (int, error) {
		calls++
		return 0, permanent
	}, isFlaky, func(error) error {
		t.Fatal("reset must not be called")
		return nil
	})

	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetryOnceReturnsResetError(t *testing.T) {
	resetErr := errors.New("dial failed")
	calls := 0
	_, err := RetryOnce(func() (int, error) {
		calls++
		return 0, errFlaky
	}, isFlaky, func(error) error {
		return resetErr
	})

	assert.Same(t, resetErr, err)
	assert.Equal(t, 1, calls)
}
