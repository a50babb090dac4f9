package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComputeOdds derives display percentages from a pool snapshot.
//
// Each outcome's percentage is its share of the total pool, rounded half-up
// to the nearest integer:
//
//	percentage = round(outcomeTotal / totalPool × 100)
//
// When the total pool is zero (no confirmed stakes yet) every outcome gets an
// equal share, round(100 / outcomeCount).
//
// Percentages are rounded independently per outcome and deliberately NOT
// renormalised to sum to exactly 100.  Several display surfaces depend on
// this exact rounding; the pool totals, not the percentages, are what payout
// computation uses.
func ComputeOdds(snapshot PoolSnapshot) map[uuid.UUID]int {
	odds := make(map[uuid.UUID]int, len(snapshot.Entries))
	n := len(snapshot.Entries)
	if n == 0 {
		return odds
	}

	total := snapshot.TotalPool()
	if total == 0 {
		equal := int(decimal.NewFromInt(100).
			Div(decimal.NewFromInt(int64(n))).
			Round(0).IntPart())
		for _, e := range snapshot.Entries {
			odds[e.OutcomeID] = equal
		}
		return odds
	}

	totalDec := decimal.NewFromInt(total)
	for _, e := range snapshot.Entries {
		pct := decimal.NewFromInt(e.Total).
			Mul(decimal.NewFromInt(100)).
			Div(totalDec).
			Round(0) // half-up for non-negative pools
		odds[e.OutcomeID] = int(pct.IntPart())
	}
	return odds
}
