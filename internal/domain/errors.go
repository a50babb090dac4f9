package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Market errors
var (
	// ErrMarketNotFound is returned when no market matches the given criteria.
	ErrMarketNotFound = errors.New("market not found")

	// ErrMarketClosed is returned when a bet placement or confirmation is
	// attempted on a market past its close time or no longer active.
	ErrMarketClosed = errors.New("market is not accepting bets")

	// ErrMarketAlreadyResolved is returned when trying to resolve or cancel an
	// already-terminal market.
	ErrMarketAlreadyResolved = errors.New("market is already resolved or cancelled")

	// ErrMarketNotClosable is returned when resolve is invoked before the
	// market's close time without the force flag.
	ErrMarketNotClosable = errors.New("market close time has not passed (use force to override)")

	// ErrTooFewOutcomes is returned when market creation supplies fewer than
	// two outcome labels.
	ErrTooFewOutcomes = errors.New("market requires at least two outcomes")

	// ErrDuplicateOutcome is returned when market creation supplies two
	// outcomes with the same label.
	ErrDuplicateOutcome = errors.New("outcome labels must be unique within a market")
)

// Bet errors
var (
	// ErrBetNotFound is returned when no bet matches the given criteria.
	ErrBetNotFound = errors.New("bet not found")

	// ErrInvalidStake is returned when the stake is not a positive integer.
	ErrInvalidStake = errors.New("stake must be a positive integer amount")

	// ErrUnknownOutcome is returned when the outcome does not belong to the
	// target market (or a legacy position string maps to no outcome).
	ErrUnknownOutcome = errors.New("outcome does not belong to this market")

	// ErrAlreadyConfirmed reports the benign idempotent case: the bet was
	// confirmed by an earlier delivery of the payment callback.  No state
	// changed; the ledger was credited exactly once.
	ErrAlreadyConfirmed = errors.New("bet is already confirmed")

	// ErrBetNotPending is returned when confirmation targets a bet in a
	// terminal state (won/lost/refunded).
	ErrBetNotPending = errors.New("bet is not pending")
)

// Invariant violations — fatal, never retried or silently absorbed.  They
// indicate a bug or data corruption elsewhere; the operation halts and the
// inconsistency is logged for operator investigation.
var (
	// ErrNegativePool is returned when a stake removal would drive an outcome
	// pool total below zero.
	ErrNegativePool = errors.New("invariant violation: outcome pool total would go negative")

	// ErrZeroWinnerPool is returned when a payout is computed against a
	// winning outcome with a zero pool total.
	ErrZeroWinnerPool = errors.New("invariant violation: winning outcome pool total is zero")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated caller lacks the
	// required role or does not own the resource.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrMarketNotFound,
	ErrBetNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors.  Use this instead of comparing error values
// directly when translating domain errors to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict: the
// caller's action was rejected because of where the entity already is in its
// lifecycle (double-resolution, confirming a settled bet, betting on a closed
// market).  Maps to HTTP 409.
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrMarketClosed,
		ErrMarketAlreadyResolved,
		ErrMarketNotClosable,
		ErrBetNotPending,
		ErrAlreadyConfirmed,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsInvariant returns true for invariant violations.  These are distinct from
// conflicts: "your action was rejected" vs "something is broken".  Callers
// must log and halt, never retry.
func IsInvariant(err error) bool {
	invariantErrors := []error{
		ErrNegativePool,
		ErrZeroWinnerPool,
	}
	for _, target := range invariantErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
