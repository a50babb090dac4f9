package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wagerpool/parimutuel/internal/domain"
)

func binaryMarket(labelA, labelB string, poolA, poolB int64) *domain.Market {
	m := &domain.Market{
		ID:       uuid.New(),
		Status:   domain.StatusActive,
		ClosesAt: time.Now().UTC().Add(time.Hour),
	}
	m.Outcomes = []domain.Outcome{
		{ID: uuid.New(), MarketID: m.ID, Label: labelA, PoolTotal: poolA},
		{ID: uuid.New(), MarketID: m.ID, Label: labelB, PoolTotal: poolB},
	}
	return m
}

// ── Binary classification ─────────────────────────────────────────────────────

func TestMarket_IsBinary(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"yes", "no", true},
		{"Yes", "NO", true},
		{"  yes ", "no", true},
		{"up", "down", true},
		{"Down", "Up", true},
		{"yes", "maybe", false},
		{"yes", "down", false},
		{"red", "blue", false},
	}
	for _, tc := range cases {
		m := binaryMarket(tc.a, tc.b, 0, 0)
		if got := m.IsBinary(); got != tc.want {
			t.Errorf("IsBinary(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMarket_IsBinary_NotTwoOutcomes(t *testing.T) {
	m := binaryMarket("yes", "no", 0, 0)
	m.Outcomes = append(m.Outcomes, domain.Outcome{ID: uuid.New(), Label: "maybe"})
	if m.IsBinary() {
		t.Error("three-outcome market must not classify as binary")
	}
}

// ── Legacy position mapping ───────────────────────────────────────────────────

func TestMarket_OutcomeByPosition(t *testing.T) {
	m := binaryMarket("Yes", "No", 0, 0)

	for _, pos := range []string{"yes", "YES", " up "} {
		got := m.OutcomeByPosition(pos)
		if got == nil || got.Label != "Yes" {
			t.Errorf("position %q should map to the Yes outcome, got %v", pos, got)
		}
	}
	for _, pos := range []string{"no", "down"} {
		got := m.OutcomeByPosition(pos)
		if got == nil || got.Label != "No" {
			t.Errorf("position %q should map to the No outcome, got %v", pos, got)
		}
	}
	if m.OutcomeByPosition("maybe") != nil {
		t.Error("unknown position should map to nil")
	}
}

func TestMarket_OutcomeByPosition_NonBinary(t *testing.T) {
	m := binaryMarket("red", "blue", 0, 0)
	if m.OutcomeByPosition("yes") != nil {
		t.Error("position strings are meaningless on non-binary markets")
	}
}

// ── Bet acceptance window ─────────────────────────────────────────────────────

func TestMarket_AcceptsBets(t *testing.T) {
	now := time.Now().UTC()
	m := binaryMarket("yes", "no", 0, 0)

	if !m.AcceptsBets(now) {
		t.Error("active market before close time should accept bets")
	}
	if m.AcceptsBets(m.ClosesAt) {
		t.Error("market at its exact close time should not accept bets")
	}
	m.Status = domain.StatusResolved
	if m.AcceptsBets(now) {
		t.Error("resolved market should not accept bets")
	}
	m.Status = domain.StatusCancelled
	if m.AcceptsBets(now) {
		t.Error("cancelled market should not accept bets")
	}
}

// ── Snapshot and summary ──────────────────────────────────────────────────────

func TestMarket_Snapshot(t *testing.T) {
	m := binaryMarket("yes", "no", 700, 300)
	snap := m.Snapshot()

	if snap.TotalPool() != 1000 {
		t.Errorf("TotalPool() = %d, want 1000", snap.TotalPool())
	}
	got, ok := snap.TotalFor(m.Outcomes[0].ID)
	if !ok || got != 700 {
		t.Errorf("TotalFor(yes) = %d,%v, want 700,true", got, ok)
	}
	if _, ok = snap.TotalFor(uuid.New()); ok {
		t.Error("TotalFor of a foreign outcome should report absent")
	}
}

func TestMarket_ToSummary(t *testing.T) {
	m := binaryMarket("yes", "no", 600, 400)
	s := m.ToSummary()

	if !s.Binary {
		t.Error("summary should mark yes/no market binary")
	}
	if s.TotalPool != 1000 {
		t.Errorf("summary total pool = %d, want 1000", s.TotalPool)
	}
	if s.Odds[m.Outcomes[0].ID] != 60 || s.Odds[m.Outcomes[1].ID] != 40 {
		t.Errorf("summary odds = %v, want 60/40", s.Odds)
	}
	if len(s.Outcomes) != 2 {
		t.Errorf("summary outcomes = %d entries, want 2", len(s.Outcomes))
	}
}

func TestMarketStatus_IsTerminal(t *testing.T) {
	if domain.StatusActive.IsTerminal() {
		t.Error("active is not terminal")
	}
	if !domain.StatusResolved.IsTerminal() || !domain.StatusCancelled.IsTerminal() {
		t.Error("resolved and cancelled are terminal")
	}
}
