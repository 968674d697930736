package email

import "fmt"

// RetryOnce runs action. If it fails with an error that retryable accepts,
// reset is called to rebuild whatever the action depends on and the action
// runs exactly one more time. An error from reset is returned as is and a
// failed second attempt is never retried again.
func RetryOnce[T any](action func() (T, error), retryable func(error) bool, reset func(cause error) error) (T, error) {
	result, err := action()
	if err == nil || !retryable(err) {
		return result, err
	}

	if rerr := reset(err); rerr != nil {
		var zero T
		return zero, rerr
	}

	result, err = action()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("retry after reconnect: %w", err)
	}
	return result, nil
}
