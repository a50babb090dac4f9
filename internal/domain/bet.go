package domain

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// BetStatus represents the current state of a user's bet.
//
// The lifecycle is a forward-only state machine:
//
//	pending   --(payment confirmed)-->               confirmed
//	pending   --(expired / cancelled, no payment)--> refunded
//	confirmed --(resolved, outcome won)-->           won
//	confirmed --(resolved, outcome lost)-->          lost
//	confirmed --(market cancelled)-->                refunded
//
// won, lost and refunded are terminal.
type BetStatus string

const (
	BetStatusPending   BetStatus = "pending"   // recorded intent, payment not yet verified
	BetStatusConfirmed BetStatus = "confirmed" // payment verified, stake committed to the pool
	BetStatusWon       BetStatus = "won"       // market resolved in user's favour
	BetStatusLost      BetStatus = "lost"      // market resolved against user
	BetStatusRefunded  BetStatus = "refunded"  // expired unpaid, or market cancelled
)

// IsTerminal returns true for statuses a bet can never leave.
func (s BetStatus) IsTerminal() bool {
	return s == BetStatusWon || s == BetStatusLost || s == BetStatusRefunded
}

// CanTransition reports whether moving from s to next follows the lifecycle
// graph.  Backward transitions never exist.
func (s BetStatus) CanTransition(next BetStatus) bool {
	switch s {
	case BetStatusPending:
		return next == BetStatusConfirmed || next == BetStatusRefunded
	case BetStatusConfirmed:
		return next == BetStatusWon || next == BetStatusLost || next == BetStatusRefunded
	default:
		return false
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Bet
// ──────────────────────────────────────────────────────────────────────────────

// Bet represents a single user wager against one outcome of a market.  All
// amounts are integers in the smallest currency unit.  A bet's stake enters
// the outcome pool only at the moment it transitions to confirmed; a pending
// bet is a record of intent and never counts toward odds or payouts.
type Bet struct {
	ID          uuid.UUID  `json:"id"           db:"id"`
	UserID      uuid.UUID  `json:"user_id"      db:"user_id"`
	MarketID    uuid.UUID  `json:"market_id"    db:"market_id"`
	OutcomeID   uuid.UUID  `json:"outcome_id"   db:"outcome_id"`
	Stake       int64      `json:"stake"        db:"stake"`
	Status      BetStatus  `json:"status"       db:"status"`
	PaymentRef  *string    `json:"payment_ref"  db:"payment_ref"` // set on confirmation
	Payout      *int64     `json:"payout"       db:"payout"`      // set on settlement
	PayoutRef   *string    `json:"payout_ref"   db:"payout_ref"`  // set once the payout is disbursed
	PlacedAt    time.Time  `json:"placed_at"    db:"placed_at"`
	ConfirmedAt *time.Time `json:"confirmed_at" db:"confirmed_at"`
	SettledAt   *time.Time `json:"settled_at"   db:"settled_at"`
}

// IsPending returns true while the bet awaits payment confirmation.
func (b *Bet) IsPending() bool {
	return b.Status == BetStatusPending
}

// IsConfirmed returns true when the stake is committed but not yet settled.
func (b *Bet) IsConfirmed() bool {
	return b.Status == BetStatusConfirmed
}

// NeedsDisbursement returns true for a won bet whose payout has been computed
// but not yet sent out.  Such bets are re-driven by the settlement-retry sweep.
func (b *Bet) NeedsDisbursement() bool {
	return b.Status == BetStatusWon && b.Payout != nil && b.PayoutRef == nil
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBetRequest — value object used by BetService
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBetRequest carries the validated inputs for placing a bet.  OutcomeID
// is always resolved (legacy position strings are mapped to an outcome id at
// the API boundary before this struct is built).
type PlaceBetRequest struct {
	UserID    uuid.UUID
	MarketID  uuid.UUID
	OutcomeID uuid.UUID
	Stake     int64
}

// SettlementResult reports the per-bet result of a market resolution or a
// settlement retry.
type SettlementResult struct {
	BetID     uuid.UUID `json:"bet_id"`
	Status    BetStatus `json:"status"`
	Payout    int64     `json:"payout"`
	PayoutRef string    `json:"payout_ref,omitempty"`
	Err       string    `json:"error,omitempty"` // disbursement failure, retryable
}
