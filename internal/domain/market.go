// Package domain defines the core business entities and types for the
// pari-mutuel prediction market engine.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	StatusActive    MarketStatus = "active"    // accepting bets until close time
	StatusResolved  MarketStatus = "resolved"  // winner determined, settlement done or in progress
	StatusCancelled MarketStatus = "cancelled" // voided; all bets refunded
)

// IsTerminal returns true for statuses a market can never leave.
func (s MarketStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// ──────────────────────────────────────────────────────────────────────────────
// Outcome
// ──────────────────────────────────────────────────────────────────────────────

// Outcome is one selectable resolution option within a Market.  PoolTotal is
// the running sum of confirmed-or-settled stakes placed on it, in the smallest
// currency unit.
type Outcome struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	MarketID  uuid.UUID `json:"market_id"  db:"market_id"`
	Label     string    `json:"label"      db:"label"`
	PoolTotal int64     `json:"pool_total" db:"pool_total"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market represents a single wagering question with two or more outcomes.
type Market struct {
	ID                uuid.UUID    `json:"id"                  db:"id"`
	Title             string       `json:"title"               db:"title"`
	Category          string       `json:"category"            db:"category"`
	Status            MarketStatus `json:"status"              db:"status"`
	ResolvedOutcomeID *uuid.UUID   `json:"resolved_outcome_id" db:"resolved_outcome_id"`
	FeeCollected      int64        `json:"fee_collected"       db:"fee_collected"`
	ClosesAt          time.Time    `json:"closes_at"           db:"closes_at"`
	ResolvedAt        *time.Time   `json:"resolved_at"         db:"resolved_at"`
	CreatedAt         time.Time    `json:"created_at"          db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"          db:"updated_at"`

	// Outcomes is loaded alongside the market row; not a column itself.
	Outcomes []Outcome `json:"outcomes" db:"-"`
}

// IsActive returns true while the market status still admits new bets.
// Note the close time is checked separately via AcceptsBets.
func (m *Market) IsActive() bool {
	return m.Status == StatusActive
}

// IsResolved returns true after the market has been settled.
func (m *Market) IsResolved() bool {
	return m.Status == StatusResolved
}

// AcceptsBets returns true when a new bet may be placed at the given instant.
func (m *Market) AcceptsBets(now time.Time) bool {
	return m.IsActive() && now.Before(m.ClosesAt)
}

// OutcomeByID returns the market's outcome with the given id, or nil when the
// id does not belong to this market.
func (m *Market) OutcomeByID(id uuid.UUID) *Outcome {
	for i := range m.Outcomes {
		if m.Outcomes[i].ID == id {
			return &m.Outcomes[i]
		}
	}
	return nil
}

// OutcomeByPosition maps a legacy binary position string ("yes"/"no", also
// accepting "up"/"down") to the matching outcome.  Only meaningful for binary
// markets; returns nil otherwise.  Positions are normalised here, at the
// boundary, so the engine below never carries two bet representations.
func (m *Market) OutcomeByPosition(position string) *Outcome {
	if !m.IsBinary() {
		return nil
	}
	want := NormaliseLabel(position)
	switch want {
	case "yes", "up":
	case "no", "down":
	default:
		return nil
	}
	for i := range m.Outcomes {
		got := NormaliseLabel(m.Outcomes[i].Label)
		if got == want ||
			(got == "yes" && want == "up") || (got == "up" && want == "yes") ||
			(got == "no" && want == "down") || (got == "down" && want == "no") {
			return &m.Outcomes[i]
		}
	}
	return nil
}

// IsBinary reports whether the market is a binary (yes/no or up/down) market.
// The classification is derived from the outcome set, never stored: exactly two
// outcomes whose labels, compared case-insensitively and ignoring surrounding
// whitespace, form {yes,no} or {up,down}.
func (m *Market) IsBinary() bool {
	if len(m.Outcomes) != 2 {
		return false
	}
	a := NormaliseLabel(m.Outcomes[0].Label)
	b := NormaliseLabel(m.Outcomes[1].Label)
	return (a == "yes" && b == "no") || (a == "no" && b == "yes") ||
		(a == "up" && b == "down") || (a == "down" && b == "up")
}

// NormaliseLabel is the canonical form outcome labels are compared in:
// lower-case, surrounding whitespace stripped.
func NormaliseLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TimeLeft returns the duration remaining until the market closes.
// Returns 0 if the closing time has already passed.
func (m *Market) TimeLeft() time.Duration {
	remaining := time.Until(m.ClosesAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot builds a PoolSnapshot from the market's loaded outcomes.
func (m *Market) Snapshot() PoolSnapshot {
	entries := make([]PoolEntry, len(m.Outcomes))
	for i, o := range m.Outcomes {
		entries[i] = PoolEntry{OutcomeID: o.ID, Label: o.Label, Total: o.PoolTotal}
	}
	return PoolSnapshot{MarketID: m.ID, Entries: entries}
}

// ──────────────────────────────────────────────────────────────────────────────
// PoolSnapshot — derived, never persisted
// ──────────────────────────────────────────────────────────────────────────────

// PoolEntry is one (outcome, confirmed-stake total) pair of a snapshot.
type PoolEntry struct {
	OutcomeID uuid.UUID `json:"outcome_id"`
	Label     string    `json:"label"`
	Total     int64     `json:"total"`
}

// PoolSnapshot is the set of per-outcome totals for a market at a point in
// time.  It is computed from confirmed-or-settled bets only and feeds both
// odds display and payout computation.
type PoolSnapshot struct {
	MarketID uuid.UUID   `json:"market_id"`
	Entries  []PoolEntry `json:"entries"`
}

// TotalPool returns the sum of all outcome totals in the snapshot.
func (s PoolSnapshot) TotalPool() int64 {
	var total int64
	for _, e := range s.Entries {
		total += e.Total
	}
	return total
}

// TotalFor returns the pool total for the given outcome and whether the
// outcome is present in the snapshot.
func (s PoolSnapshot) TotalFor(outcomeID uuid.UUID) (int64, bool) {
	for _, e := range s.Entries {
		if e.OutcomeID == outcomeID {
			return e.Total, true
		}
	}
	return 0, false
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketSummary — lightweight read model for WS broadcasts and list endpoints
// ──────────────────────────────────────────────────────────────────────────────

// MarketSummary is a derived, read-only view of a Market used for broadcasting.
type MarketSummary struct {
	ID          uuid.UUID         `json:"id"`
	Title       string            `json:"title"`
	Status      MarketStatus      `json:"status"`
	Binary      bool              `json:"binary"`
	Outcomes    []PoolEntry       `json:"outcomes"`
	Odds        map[uuid.UUID]int `json:"odds"` // outcome id → percentage
	TotalPool   int64             `json:"total_pool"`
	ClosesAt    time.Time         `json:"closes_at"`
	TimeLeftSec int64             `json:"time_left_sec"`
}

// ToSummary builds a MarketSummary with current odds.
func (m *Market) ToSummary() MarketSummary {
	snap := m.Snapshot()
	return MarketSummary{
		ID:          m.ID,
		Title:       m.Title,
		Status:      m.Status,
		Binary:      m.IsBinary(),
		Outcomes:    snap.Entries,
		Odds:        ComputeOdds(snap),
		TotalPool:   snap.TotalPool(),
		ClosesAt:    m.ClosesAt,
		TimeLeftSec: int64(m.TimeLeft().Seconds()),
	}
}
