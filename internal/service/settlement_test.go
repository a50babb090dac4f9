package service_test

import (
	"testing"

	"github.com/wagerpool/parimutuel/internal/domain"
)

// TestCancelResumeRefundsRemainder models a cancellation interrupted mid-way
// and driven to completion by a second call.  Every refund step is
// status-guarded (confirmed→refunded flips exactly once), so re-running the
// loop after a crash refunds the remainder and disburses each stake exactly
// once; a third run touches nothing.
func TestCancelResumeRefundsRemainder(t *testing.T) {
	stakes := []int64{100, 250, 75, 300, 50}

	statuses := make([]domain.BetStatus, len(stakes))
	for i := range statuses {
		statuses[i] = domain.BetStatusConfirmed
	}
	disbursed := make([]int, len(stakes))

	// runCancel replays the refund loop: the status guard decides whether a
	// bet is refunded, stopAfter simulates a crash part-way through.
	runCancel := func(stopAfter int) {
		refunded := 0
		for i := range stakes {
			if statuses[i] != domain.BetStatusConfirmed {
				continue // refunded by an earlier attempt
			}
			statuses[i] = domain.BetStatusRefunded
			disbursed[i]++
			refunded++
			if refunded == stopAfter {
				return
			}
		}
	}

	// First run crashes after two refunds.
	runCancel(2)
	// Second run re-enters against the already-cancelled market and finishes.
	runCancel(len(stakes))
	// Third run is a no-op.
	runCancel(len(stakes))

	for i := range stakes {
		if statuses[i] != domain.BetStatusRefunded {
			t.Errorf("bet %d: status = %s, want refunded", i, statuses[i])
		}
		if disbursed[i] != 1 {
			t.Errorf("bet %d: disbursed %d times, want exactly once", i, disbursed[i])
		}
	}
}

// TestResidueFromRecordedPayouts: the house residue is derived from the
// recorded per-bet payouts, not from a single run's accumulator.  A run that
// crashes after settling one winner records an inflated residue; the resumed
// run settles the rest, re-derives the paid-out total from the records, and
// overwrites the ledger with the correct figure.
func TestResidueFromRecordedPayouts(t *testing.T) {
	// total 100, fee 1, net 99, winner pool 7, stakes 1/2/4 → payouts 14/28/56.
	const totalPool = int64(100)
	stakes := []int64{1, 2, 4}
	const winnerTotal = int64(7)

	statuses := make([]domain.BetStatus, len(stakes))
	for i := range statuses {
		statuses[i] = domain.BetStatusConfirmed
	}
	recorded := make([]int64, len(stakes))

	fee := domain.FeeAmount(totalPool, domain.FeeRate)

	// runSettlement settles any still-confirmed bet, then derives the residue
	// from the durable payout records exactly as the service does.
	runSettlement := func(stopAfter int) int64 {
		settled := 0
		for i, stake := range stakes {
			if statuses[i] != domain.BetStatusConfirmed {
				continue
			}
			payout, err := domain.ComputePayout(stake, winnerTotal, totalPool, domain.FeeRate)
			if err != nil {
				t.Fatalf("ComputePayout(stake=%d): %v", stake, err)
			}
			statuses[i] = domain.BetStatusWon
			recorded[i] = payout
			settled++
			if settled == stopAfter {
				break
			}
		}
		var paidOut int64
		for _, p := range recorded {
			paidOut += p
		}
		return totalPool - fee - paidOut
	}

	// First run crashes after one winner; the ledger row it writes overstates
	// the residue because two payouts are not on record yet.
	partial := runSettlement(1)
	if partial != 100-1-14 {
		t.Fatalf("partial-run residue = %d, want %d", partial, 100-1-14)
	}

	// The resumed run overwrites the ledger with the residue derived from the
	// full payout record.
	final := runSettlement(len(stakes))
	if final != 1 {
		t.Errorf("final residue = %d, want 1", final)
	}

	var paidOut int64
	for _, p := range recorded {
		paidOut += p
	}
	if paidOut+fee+final != totalPool {
		t.Errorf("payouts %d + fee %d + residue %d != pool %d", paidOut, fee, final, totalPool)
	}
}
