package errors

// Error codes for categorizing errors across the core.
const (
	// CodeOK indicates success (not an error).
	CodeOK = "OK"

	// CodeUnknown indicates an unknown error occurred.
	CodeUnknown = "UNKNOWN"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound = "NOT_FOUND"

	// CodeInvalidArgument indicates the caller passed an invalid argument.
	CodeInvalidArgument = "INVALID_ARGUMENT"

	// CodeTimeout indicates an operation timed out.
	CodeTimeout = "TIMEOUT"

	// CodeInternal indicates an internal error.
	CodeInternal = "INTERNAL"

	// Domain-specific error codes

	// CodeSyncFailure indicates a ledger query or height check failed during
	// an active sync pass. The checkpoint is left unchanged.
	CodeSyncFailure = "SYNC_FAILURE"

	// CodeEntityFetchFailure indicates one per-entity read failed inside a
	// batched fallback call. Isolated per entity, never fails the batch.
	CodeEntityFetchFailure = "ENTITY_FETCH_FAILURE"

	// CodeQueryFetchFailure indicates the fetch behind a cached query failed.
	// The failure reaches every coalesced caller; nothing is cached.
	CodeQueryFetchFailure = "QUERY_FETCH_FAILURE"
)

// retryableCodes maps error codes that indicate a transient condition.
var retryableCodes = map[string]bool{
	CodeTimeout:           true,
	CodeSyncFailure:       true,
	CodeQueryFetchFailure: true,
}

// IsRetryable reports whether an error code indicates a transient condition
// worth retrying.
func IsRetryable(code string) bool {
	return retryableCodes[code]
}
