package git

import "errors"

// Error classes shared by the host implementations.
// Providers wrap them with fmt.Errorf and %w so that
// callers can test with errors.Is regardless of the
// platform behind the failure.
var (
	// ErrUnauthorized reports a rejected credential or
	// insufficient scope.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound reports a missing branch or
	// repository where creation does not apply.
	ErrNotFound = errors.New("not found")

	// ErrBranchConflict reports a non-force ref update
	// rejected because the branch advanced
	// concurrently. Never retried.
	ErrBranchConflict = errors.New("branch moved concurrently")
)
