package errors

import "errors"

// Is reports whether any error in err's tree matches target.
// Re-exported so callers don't need to import both error packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr) || errors.Is(err, ErrNotFound)
}

// IsSyncFailure checks if an error is a mid-pass sync failure.
func IsSyncFailure(err error) bool {
	if err == nil {
		return false
	}

	var syncErr *SyncError
	return errors.As(err, &syncErr)
}

// IsEntityFetchFailure checks if an error is an isolated per-entity failure.
func IsEntityFetchFailure(err error) bool {
	if err == nil {
		return false
	}

	var entityErr *EntityFetchError
	return errors.As(err, &entityErr)
}

// IsTimeout checks if an error indicates a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr) || errors.Is(err, ErrTimeout)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	if err == nil {
		return CodeOK
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Code()
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidArgument
	default:
		return CodeUnknown
	}
}

// ShouldRetry checks if an operation should be retried based on the error.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return IsRetryable(GetErrorCode(err))
}
