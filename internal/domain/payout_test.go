package domain_test

import (
	"errors"
	"testing"

	"github.com/wagerpool/parimutuel/internal/domain"
)

// TestComputePayout_ProportionalShare validates the core pari-mutuel formula.
//
//	total pool   = 10 000
//	winner pool  =  4 000
//	fee          = 1 %  →  net pool 9 900
//	stake 1 000  →  9 900 × 1000/4000 = 2 475
func TestComputePayout_ProportionalShare(t *testing.T) {
	payout, err := domain.ComputePayout(1000, 4000, 10000, domain.FeeRate)
	if err != nil {
		t.Fatalf("ComputePayout: %v", err)
	}
	if payout != 2475 {
		t.Errorf("payout = %d, want 2475", payout)
	}
}

// TestComputePayout_SoleWinnerTakesNetPool: when one bettor holds the entire
// winning pool, the payout is the whole pool minus the fee.
func TestComputePayout_SoleWinnerTakesNetPool(t *testing.T) {
	payout, err := domain.ComputePayout(4000, 4000, 10000, domain.FeeRate)
	if err != nil {
		t.Fatalf("ComputePayout: %v", err)
	}
	if payout != 9900 {
		t.Errorf("sole winner payout = %d, want 9900", payout)
	}
}

// TestComputePayout_TruncatesRemainders: fractional units are floored per
// bet; the leftover stays with the platform.
func TestComputePayout_TruncatesRemainders(t *testing.T) {
	// total 100, fee 1, net 99, winner pool 7.
	// stakes 1, 2, 4 → raw shares 14.142…, 28.285…, 56.571…
	stakes := []int64{1, 2, 4}
	want := []int64{14, 28, 56}

	var paidOut int64
	for i, stake := range stakes {
		payout, err := domain.ComputePayout(stake, 7, 100, domain.FeeRate)
		if err != nil {
			t.Fatalf("ComputePayout(stake=%d): %v", stake, err)
		}
		if payout != want[i] {
			t.Errorf("payout for stake %d = %d, want %d", stake, payout, want[i])
		}
		paidOut += payout
	}

	fee := domain.FeeAmount(100, domain.FeeRate)
	residue := 100 - fee - paidOut
	if residue != 1 {
		t.Errorf("truncation residue = %d, want 1", residue)
	}
}

// TestComputePayout_Conservation: across any winner split, payouts never
// exceed the pool minus the fee.
func TestComputePayout_Conservation(t *testing.T) {
	cases := []struct {
		totalPool int64
		stakes    []int64
	}{
		{1700, []int64{1000, 200}},
		{999, []int64{1, 2, 3, 4, 5}},
		{1, []int64{1}},
		{5_000_000_000, []int64{999_999_999, 1}}, // beyond int32 range
	}
	for _, tc := range cases {
		var winnerTotal int64
		for _, s := range tc.stakes {
			winnerTotal += s
		}
		var paidOut int64
		for _, stake := range tc.stakes {
			payout, err := domain.ComputePayout(stake, winnerTotal, tc.totalPool, domain.FeeRate)
			if err != nil {
				t.Fatalf("ComputePayout(total=%d, stake=%d): %v", tc.totalPool, stake, err)
			}
			paidOut += payout
		}
		fee := domain.FeeAmount(tc.totalPool, domain.FeeRate)
		if paidOut+fee > tc.totalPool {
			t.Errorf("pool %d: paid %d + fee %d exceeds the pool", tc.totalPool, paidOut, fee)
		}
	}
}

func TestComputePayout_ZeroWinnerPool(t *testing.T) {
	_, err := domain.ComputePayout(100, 0, 1000, domain.FeeRate)
	if !errors.Is(err, domain.ErrZeroWinnerPool) {
		t.Errorf("err = %v, want ErrZeroWinnerPool", err)
	}
	if !domain.IsInvariant(err) {
		t.Error("zero winner pool must classify as an invariant violation")
	}
	if domain.IsConflict(err) {
		t.Error("invariant violations must not classify as conflicts")
	}
}

func TestComputePayout_InvalidStake(t *testing.T) {
	for _, stake := range []int64{0, -5} {
		if _, err := domain.ComputePayout(stake, 100, 1000, domain.FeeRate); !errors.Is(err, domain.ErrInvalidStake) {
			t.Errorf("stake %d: err = %v, want ErrInvalidStake", stake, err)
		}
	}
}

func TestFeeAmount(t *testing.T) {
	if got := domain.FeeAmount(10000, domain.FeeRate); got != 100 {
		t.Errorf("FeeAmount(10000) = %d, want 100", got)
	}
	// 1 % of 199 is 1.99 — floored, not rounded.
	if got := domain.FeeAmount(199, domain.FeeRate); got != 1 {
		t.Errorf("FeeAmount(199) = %d, want 1", got)
	}
	if got := domain.FeeAmount(0, domain.FeeRate); got != 0 {
		t.Errorf("FeeAmount(0) = %d, want 0", got)
	}
}
