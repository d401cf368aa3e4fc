package domain

import (
	"errors"
	"fmt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

var (
	// ErrInvalidArgument is returned for missing or malformed required fields,
	// non-positive amounts and unrecognised positions or outcomes. Wrapped with
	// the offending detail.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMarketNotFound is returned when no market matches the given id.
	ErrMarketNotFound = errors.New("market not found")

	// ErrMarketClosed is returned when a stake is placed on a market that is
	// no longer open.
	ErrMarketClosed = errors.New("market closed")

	// ErrMarketAlreadyResolved is returned by a second resolution attempt.
	ErrMarketAlreadyResolved = errors.New("market is already resolved")

	// ErrCommentaryUnavailable is returned when the commentary collaborator is
	// disabled or failed. It never originates from a ledger operation.
	ErrCommentaryUnavailable = errors.New("commentary unavailable")
)

// invalidf wraps ErrInvalidArgument with a formatted detail message.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsNotFound returns true when err (or any error in its chain) is a "not
// found" error. Handlers translate it to HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMarketNotFound)
}

// IsConflict returns true for errors that represent a state conflict: staking
// on a closed market or resolving twice.
func IsConflict(err error) bool {
	return errors.Is(err, ErrMarketClosed) || errors.Is(err, ErrMarketAlreadyResolved)
}

// IsInvalid returns true for argument validation errors.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
