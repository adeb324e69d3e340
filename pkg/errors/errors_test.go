package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestSyncErrorWrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewSyncError(100, 200, cause)

	if !Is(err, cause) {
		t.Error("SyncError should unwrap to its cause")
	}
	if err.FromBlock != 100 || err.ToBlock != 200 {
		t.Errorf("range lost: %d-%d", err.FromBlock, err.ToBlock)
	}
	if err.Code() != CodeSyncFailure {
		t.Errorf("expected %s, got %s", CodeSyncFailure, err.Code())
	}
	if !strings.Contains(err.Error(), "100-200") || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !IsSyncFailure(err) {
		t.Error("IsSyncFailure should match a SyncError")
	}
	if IsSyncFailure(cause) {
		t.Error("IsSyncFailure should not match the bare cause")
	}
}

func TestEntityFetchError(t *testing.T) {
	cause := stderrors.New("execution reverted")
	err := NewEntityFetchError("0xabc", cause)

	if !IsEntityFetchFailure(err) {
		t.Error("IsEntityFetchFailure should match")
	}
	if err.Address != "0xabc" {
		t.Errorf("address lost: %s", err.Address)
	}
	if !Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}

	var target *EntityFetchError
	if !As(err, &target) || target.Address != "0xabc" {
		t.Error("As should recover the typed error")
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("project", "0xdead")

	if !IsNotFound(err) {
		t.Error("IsNotFound should match a NotFoundError")
	}
	if !Is(err, ErrNotFound) {
		t.Error("NotFoundError should chain to the sentinel")
	}
	if !strings.Contains(err.Error(), "project") || !strings.Contains(err.Error(), "0xdead") {
		t.Errorf("unexpected message: %s", err.Error())
	}

	noID := NewNotFoundError("checkpoint", "")
	if strings.Contains(noID.Error(), "ID") {
		t.Errorf("expected short form without an ID, got: %s", noID.Error())
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("aggregator probe")
	if !IsTimeout(err) {
		t.Error("IsTimeout should match a TimeoutError")
	}
	if !IsTimeout(ErrTimeout) {
		t.Error("IsTimeout should match the sentinel")
	}
	if IsTimeout(nil) {
		t.Error("IsTimeout(nil) should be false")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, CodeOK},
		{"typed sync error", NewSyncError(1, 2, stderrors.New("x")), CodeSyncFailure},
		{"typed storage error", NewStorageError("upsert", stderrors.New("x")), CodeInternal},
		{"typed query error", NewQueryFetchError("home:0:20", stderrors.New("x")), CodeQueryFetchFailure},
		{"not found sentinel", ErrNotFound, CodeNotFound},
		{"timeout sentinel", ErrTimeout, CodeTimeout},
		{"invalid input sentinel", ErrInvalidInput, CodeInvalidArgument},
		{"plain error", stderrors.New("anything"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.want {
				t.Errorf("GetErrorCode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sync failure retries", NewSyncError(1, 2, stderrors.New("x")), true},
		{"query failure retries", NewQueryFetchError("k", stderrors.New("x")), true},
		{"timeout retries", ErrTimeout, true},
		{"not found does not", ErrNotFound, false},
		{"invalid input does not", ErrInvalidInput, false},
		{"entity failure does not", NewEntityFetchError("0xa", stderrors.New("x")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err); got != tt.want {
				t.Errorf("ShouldRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}
