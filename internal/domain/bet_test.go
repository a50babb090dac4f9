package domain_test

import (
	"testing"

	"github.com/wagerpool/parimutuel/internal/domain"
)

// The bet lifecycle is forward-only; this table is the whole graph.
func TestBetStatus_CanTransition(t *testing.T) {
	allowed := map[domain.BetStatus][]domain.BetStatus{
		domain.BetStatusPending:   {domain.BetStatusConfirmed, domain.BetStatusRefunded},
		domain.BetStatusConfirmed: {domain.BetStatusWon, domain.BetStatusLost, domain.BetStatusRefunded},
		domain.BetStatusWon:       {},
		domain.BetStatusLost:      {},
		domain.BetStatusRefunded:  {},
	}
	all := []domain.BetStatus{
		domain.BetStatusPending, domain.BetStatusConfirmed,
		domain.BetStatusWon, domain.BetStatusLost, domain.BetStatusRefunded,
	}

	for from, nexts := range allowed {
		ok := make(map[domain.BetStatus]bool)
		for _, n := range nexts {
			ok[n] = true
		}
		for _, to := range all {
			if got := from.CanTransition(to); got != ok[to] {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", from, to, got, ok[to])
			}
		}
	}
}

func TestBetStatus_NoSkippingConfirmation(t *testing.T) {
	// A pending bet can never settle directly; its stake never entered the pool.
	for _, to := range []domain.BetStatus{domain.BetStatusWon, domain.BetStatusLost} {
		if domain.BetStatusPending.CanTransition(to) {
			t.Errorf("pending must not transition directly to %s", to)
		}
	}
}

func TestBetStatus_IsTerminal(t *testing.T) {
	terminal := map[domain.BetStatus]bool{
		domain.BetStatusPending:   false,
		domain.BetStatusConfirmed: false,
		domain.BetStatusWon:       true,
		domain.BetStatusLost:      true,
		domain.BetStatusRefunded:  true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestBet_NeedsDisbursement(t *testing.T) {
	payout := int64(500)
	ref := "pay-123"

	b := &domain.Bet{Status: domain.BetStatusWon, Payout: &payout}
	if !b.NeedsDisbursement() {
		t.Error("won bet with payout and no payout_ref needs disbursement")
	}

	b.PayoutRef = &ref
	if b.NeedsDisbursement() {
		t.Error("disbursed bet must not be re-sent")
	}

	b = &domain.Bet{Status: domain.BetStatusLost}
	if b.NeedsDisbursement() {
		t.Error("lost bet has nothing to disburse")
	}
}
