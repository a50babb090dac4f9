package domain_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/wagerpool/parimutuel/internal/domain"
)

func snapshotOf(totals ...int64) (domain.PoolSnapshot, []uuid.UUID) {
	ids := make([]uuid.UUID, len(totals))
	entries := make([]domain.PoolEntry, len(totals))
	for i, total := range totals {
		ids[i] = uuid.New()
		entries[i] = domain.PoolEntry{OutcomeID: ids[i], Total: total}
	}
	return domain.PoolSnapshot{MarketID: uuid.New(), Entries: entries}, ids
}

func TestComputeOdds_ProportionalShares(t *testing.T) {
	snap, ids := snapshotOf(600, 400)
	odds := domain.ComputeOdds(snap)

	if odds[ids[0]] != 60 {
		t.Errorf("odds for 600/1000 = %d, want 60", odds[ids[0]])
	}
	if odds[ids[1]] != 40 {
		t.Errorf("odds for 400/1000 = %d, want 40", odds[ids[1]])
	}
}

func TestComputeOdds_RoundsHalfUp(t *testing.T) {
	// 1/8 of the pool is exactly 12.5 % — half-up rounds to 13.
	snap, ids := snapshotOf(1, 1, 6)
	odds := domain.ComputeOdds(snap)

	if odds[ids[0]] != 13 || odds[ids[1]] != 13 {
		t.Errorf("12.5%% should round half-up to 13, got %d and %d", odds[ids[0]], odds[ids[1]])
	}
	if odds[ids[2]] != 75 {
		t.Errorf("odds for 6/8 = %d, want 75", odds[ids[2]])
	}
}

func TestComputeOdds_NotRenormalised(t *testing.T) {
	// Three equal outcomes each round to 33; the sum is 99 and stays 99.
	snap, _ := snapshotOf(100, 100, 100)
	odds := domain.ComputeOdds(snap)

	sum := 0
	for _, pct := range odds {
		if pct != 33 {
			t.Errorf("equal three-way split should give 33 each, got %d", pct)
		}
		sum += pct
	}
	if sum != 99 {
		t.Errorf("percentages must not be renormalised: sum = %d, want 99", sum)
	}

	// And the half-up case from above sums above 100.
	snap, _ = snapshotOf(1, 1, 6)
	sum = 0
	for _, pct := range domain.ComputeOdds(snap) {
		sum += pct
	}
	if sum != 101 {
		t.Errorf("sum after half-up rounding = %d, want 101", sum)
	}
}

func TestComputeOdds_EmptyPoolEqualSplit(t *testing.T) {
	snap, ids := snapshotOf(0, 0)
	odds := domain.ComputeOdds(snap)
	if odds[ids[0]] != 50 || odds[ids[1]] != 50 {
		t.Errorf("empty binary pool should show 50/50, got %d/%d", odds[ids[0]], odds[ids[1]])
	}

	snap, _ = snapshotOf(0, 0, 0)
	for _, pct := range domain.ComputeOdds(snap) {
		if pct != 33 {
			t.Errorf("empty three-way pool should show 33 each, got %d", pct)
		}
	}
}

func TestComputeOdds_NoOutcomes(t *testing.T) {
	odds := domain.ComputeOdds(domain.PoolSnapshot{MarketID: uuid.New()})
	if len(odds) != 0 {
		t.Errorf("snapshot without entries should give empty odds, got %v", odds)
	}
}

func TestComputeOdds_OneSidedPool(t *testing.T) {
	snap, ids := snapshotOf(500, 0)
	odds := domain.ComputeOdds(snap)
	if odds[ids[0]] != 100 {
		t.Errorf("fully one-sided outcome = %d, want 100", odds[ids[0]])
	}
	if odds[ids[1]] != 0 {
		t.Errorf("empty outcome = %d, want 0", odds[ids[1]])
	}
}
