package metadata

import "errors"

// StoreError represents a domain error from file or directory operations.
//
// These are business logic errors (name collision, stale snapshot, missing
// version) as opposed to infrastructure errors, which are wrapped as
// ErrStorageFailure with the backend cause preserved for inspection via
// errors.Unwrap.
//
// Every operation in this library either succeeds or returns an error
// carrying exactly one of the codes below; nothing is swallowed. Callers
// branch on codes with HasCode:
//
//	result, err := store.Persist(ctx, listing)
//	if metadata.HasCode(err, metadata.ErrConflict) {
//	    // re-fetch the current snapshot, reapply the change, retry
//	}
type StoreError struct {
	// Code is the error category.
	Code ErrorCode

	// Message is a human-readable error description.
	Message string

	// Name is the file name, directory ID or version ID related to the
	// error, when applicable. Helps debugging and error reporting.
	Name string

	// Err is the underlying cause for ErrStorageFailure errors, nil
	// otherwise.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Message
	if e.Name != "" {
		msg += ": " + e.Name
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the backend cause of a StorageFailure, if any.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested file, directory or key is
	// absent.
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a sibling with the same name already
	// exists in the directory.
	ErrAlreadyExists

	// ErrConflict indicates a stale read: either a record that no longer
	// matches the stored entry, or a persist based on a version that is
	// no longer the chain's current one. The caller owns the retry loop:
	// re-fetch, reapply, persist again.
	ErrConflict

	// ErrAccessDenied indicates the presented access level does not
	// satisfy the directory key's capability requirement.
	ErrAccessDenied

	// ErrStorageFailure indicates a backend error. The cause is
	// preserved opaquely and reachable through errors.Unwrap.
	ErrStorageFailure

	// ErrRange indicates a read past the end of the content.
	ErrRange

	// ErrInvalidOperation indicates the operation is not valid for the
	// target, e.g. listing versions of an unversioned directory or
	// writing through a consumed Writer.
	ErrInvalidOperation

	// ErrVersionNotFound indicates the version ID is absent from the
	// directory's chain.
	ErrVersionNotFound
)

// String returns the code's name for logging.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrConflict:
		return "Conflict"
	case ErrAccessDenied:
		return "AccessDenied"
	case ErrStorageFailure:
		return "StorageFailure"
	case ErrRange:
		return "RangeError"
	case ErrInvalidOperation:
		return "InvalidOperation"
	case ErrVersionNotFound:
		return "VersionNotFound"
	default:
		return "Unknown"
	}
}

// NewStoreError creates a StoreError with the given code, message and
// subject name.
func NewStoreError(code ErrorCode, message, name string) *StoreError {
	return &StoreError{Code: code, Message: message, Name: name}
}

// WrapStorageFailure wraps a backend error as an ErrStorageFailure,
// preserving the cause.
func WrapStorageFailure(message string, err error) *StoreError {
	return &StoreError{Code: ErrStorageFailure, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) is a StoreError with
// the given code.
func HasCode(err error, code ErrorCode) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}
