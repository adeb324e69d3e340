package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors for quick checks
var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timeout")

	// ErrInvalidInput is returned when an argument is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// Error is the base interface for all typed errors in the core.
// It extends the standard error interface with a code and a message.
type Error interface {
	error
	// Code returns the error code
	Code() string
	// Message returns the human-readable error message
	Message() string
	// Unwrap returns the underlying cause
	Unwrap() error
}

// BaseError provides a foundation for all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *BaseError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *BaseError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error {
	return e.cause
}

// SyncError represents a ledger query or height-check failure during an
// active sync pass. The covered range identifies the pass that failed.
type SyncError struct {
	*BaseError
	FromBlock uint64
	ToBlock   uint64
}

// NewSyncError creates a SyncError wrapping the underlying cause.
func NewSyncError(fromBlock, toBlock uint64, cause error) *SyncError {
	return &SyncError{
		BaseError: &BaseError{
			code:    CodeSyncFailure,
			message: fmt.Sprintf("sync failed for blocks %d-%d", fromBlock, toBlock),
			cause:   cause,
		},
		FromBlock: fromBlock,
		ToBlock:   toBlock,
	}
}

// StorageError represents a failure inside the persistent index store.
type StorageError struct {
	*BaseError
	Op string
}

// NewStorageError creates a StorageError for the given operation.
func NewStorageError(op string, cause error) *StorageError {
	return &StorageError{
		BaseError: &BaseError{
			code:    CodeInternal,
			message: fmt.Sprintf("storage operation %s failed", op),
			cause:   cause,
		},
		Op: op,
	}
}

// EntityFetchError represents one failed per-entity read inside a batched
// fallback call.
type EntityFetchError struct {
	*BaseError
	Address string
}

// NewEntityFetchError creates an EntityFetchError for the given instance.
func NewEntityFetchError(address string, cause error) *EntityFetchError {
	return &EntityFetchError{
		BaseError: &BaseError{
			code:    CodeEntityFetchFailure,
			message: fmt.Sprintf("failed to fetch entity %s", address),
			cause:   cause,
		},
		Address: address,
	}
}

// QueryFetchError represents a failed fetch behind a cached query key.
type QueryFetchError struct {
	*BaseError
	Key string
}

// NewQueryFetchError creates a QueryFetchError for the given cache key.
func NewQueryFetchError(key string, cause error) *QueryFetchError {
	return &QueryFetchError{
		BaseError: &BaseError{
			code:    CodeQueryFetchFailure,
			message: fmt.Sprintf("query fetch failed for %s", key),
			cause:   cause,
		},
		Key: key,
	}
}

// NotFoundError represents a missing resource.
type NotFoundError struct {
	*BaseError
	Resource string
	ID       string
}

// NewNotFoundError creates a NotFoundError for the given resource.
func NewNotFoundError(resource, id string) *NotFoundError {
	msg := fmt.Sprintf("%s not found", resource)
	if id != "" {
		msg = fmt.Sprintf("%s with ID '%s' not found", resource, id)
	}
	return &NotFoundError{
		BaseError: &BaseError{
			code:    CodeNotFound,
			message: msg,
			cause:   ErrNotFound,
		},
		Resource: resource,
		ID:       id,
	}
}

// TimeoutError represents an operation that exceeded its deadline.
type TimeoutError struct {
	*BaseError
	Operation string
}

// NewTimeoutError creates a TimeoutError for the given operation.
func NewTimeoutError(operation string) *TimeoutError {
	return &TimeoutError{
		BaseError: &BaseError{
			code:    CodeTimeout,
			message: fmt.Sprintf("%s timed out", operation),
			cause:   ErrTimeout,
		},
		Operation: operation,
	}
}
