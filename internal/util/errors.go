// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidAmount       = errors.New("top-up amount must be a positive integer")
	ErrUserNotFound        = errors.New("user not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrAdminWalletNotFound = errors.New("admin wallet not found")
	ErrInvalidBalance      = errors.New("balance would become negative")
	ErrConcurrencyConflict = errors.New("wallet update lost a race, retries exhausted")
	ErrPartialCommit       = errors.New("top-up commit outcome unknown, reconciliation required")
	ErrDuplicateEntry      = errors.New("duplicate entry")
)

// IsError reports whether err matches target in its chain.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
