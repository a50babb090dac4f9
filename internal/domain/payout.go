package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeRate is the flat pari-mutuel platform fee (1 %), applied identically to
// every market.  It is a fixed constant, not a per-market setting.
var FeeRate = decimal.NewFromFloat(0.01)

// ComputePayout computes a winning bet's payout in the smallest currency unit.
//
// Pari-mutuel, winner takes a proportional share of the entire pool net of
// the platform fee:
//
//	netPool = totalPool × (1 - feeRate)
//	payout  = netPool × (stake / winnerTotal)
//
// Fractional remainders are truncated, never rounded up; the residue across
// all winners stays with the platform.
//
// winnerTotal == 0 for a won bet is impossible in consistent data (the bet's
// own stake is part of that total) and is reported as ErrZeroWinnerPool, an
// invariant violation the caller must halt on rather than default away.
func ComputePayout(stake, winnerTotal, totalPool int64, feeRate decimal.Decimal) (int64, error) {
	if stake <= 0 {
		return 0, fmt.Errorf("%w: stake %d", ErrInvalidStake, stake)
	}
	if winnerTotal <= 0 {
		return 0, fmt.Errorf("%w: winner total %d, total pool %d", ErrZeroWinnerPool, winnerTotal, totalPool)
	}

	netPool := decimal.NewFromInt(totalPool).
		Mul(decimal.NewFromInt(1).Sub(feeRate))

	payout := netPool.
		Mul(decimal.NewFromInt(stake)).
		Div(decimal.NewFromInt(winnerTotal)).
		Floor()

	return payout.IntPart(), nil
}

// FeeAmount returns the platform's cut of a pool, truncated to the smallest
// currency unit.  Recorded per market in the house ledger at resolution time.
func FeeAmount(totalPool int64, feeRate decimal.Decimal) int64 {
	return decimal.NewFromInt(totalPool).Mul(feeRate).Floor().IntPart()
}
