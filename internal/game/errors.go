package game

import "errors"

// Error kinds reported by the engines. Concrete failures wrap one of these
// with detail, so callers should match with errors.Is.
var (
	// ErrValidation covers malformed input: out-of-range numbers, unknown
	// patterns or modes, non-positive amounts.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a payer cannot cover a debit.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidStateTransition is returned when an operation is not allowed
	// in the entity's current state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrDuplicateCall is returned when a bingo number was already called.
	ErrDuplicateCall = errors.New("number already called")

	// ErrAlreadySettled is reported by a ledger when the payout flag was
	// already set. The payout resolver absorbs it.
	ErrAlreadySettled = errors.New("payout already settled")

	// ErrNotOrganizer is returned when an organizer-only action is attempted
	// by someone else.
	ErrNotOrganizer = errors.New("only the organizer may do this")

	// ErrNotFound is returned when a game, raffle or ticket does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSessionExists is returned when an automatic session is already
	// running for the entity.
	ErrSessionExists = errors.New("automatic session already running")
)
