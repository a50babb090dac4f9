// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/google/uuid"

	"github.com/wagerpool/parimutuel/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeOddsUpdate      MsgType = "odds_update"
	MsgTypeBetConfirmed    MsgType = "bet_confirmed"
	MsgTypeMarketResolved  MsgType = "market_resolved"
	MsgTypeMarketCancelled MsgType = "market_cancelled"
	MsgTypeNewMarket       MsgType = "new_market"
)

// OutcomeOdds is one outcome's share of the pool as displayed to clients.
type OutcomeOdds struct {
	OutcomeID  uuid.UUID `json:"outcome_id"`
	Label      string    `json:"label"`
	PoolTotal  int64     `json:"pool_total"`
	Percentage int       `json:"percentage"`
}

// OddsUpdateMessage carries refreshed pool state for one market.  Broadcast
// after every confirmation and periodically by the scheduler so countdowns
// stay fresh.
type OddsUpdateMessage struct {
	Type        MsgType       `json:"type"`
	MarketID    uuid.UUID     `json:"market_id"`
	Title       string        `json:"title"`
	Binary      bool          `json:"binary"`
	Outcomes    []OutcomeOdds `json:"outcomes"`
	TotalPool   int64         `json:"total_pool"`
	TimeLeftSec int64         `json:"time_left_sec"`
	Timestamp   time.Time     `json:"timestamp"`
}

// BetConfirmedMessage notifies all clients that confirmed money moved the
// pool.  Stake amounts are public, bettor identity is not.
type BetConfirmedMessage struct {
	Type      MsgType   `json:"type"`
	MarketID  uuid.UUID `json:"market_id"`
	OutcomeID uuid.UUID `json:"outcome_id"`
	Stake     int64     `json:"stake"`
	Timestamp time.Time `json:"timestamp"`
}

// MarketResolvedMessage tells clients which outcome won.
type MarketResolvedMessage struct {
	Type             MsgType   `json:"type"`
	MarketID         uuid.UUID `json:"market_id"`
	WinningOutcomeID uuid.UUID `json:"winning_outcome_id"`
	TotalPool        int64     `json:"total_pool"`
	Timestamp        time.Time `json:"timestamp"`
}

// MarketCancelledMessage tells clients the market was voided and stakes are
// being returned.
type MarketCancelledMessage struct {
	Type      MsgType   `json:"type"`
	MarketID  uuid.UUID `json:"market_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMarketMessage carries the identity of a freshly opened market.
type NewMarketMessage struct {
	Type      MsgType   `json:"type"`
	MarketID  uuid.UUID `json:"market_id"`
	Title     string    `json:"title"`
	ClosesAt  time.Time `json:"closes_at"`
	Timestamp time.Time `json:"timestamp"`
}

// OddsUpdateFromSummary converts a market summary into the wire message.
func OddsUpdateFromSummary(s *domain.MarketSummary) OddsUpdateMessage {
	msg := OddsUpdateMessage{
		Type:        MsgTypeOddsUpdate,
		MarketID:    s.ID,
		Title:       s.Title,
		Binary:      s.Binary,
		TotalPool:   s.TotalPool,
		TimeLeftSec: s.TimeLeftSec,
		Timestamp:   time.Now().UTC(),
	}
	msg.Outcomes = make([]OutcomeOdds, len(s.Outcomes))
	for i, e := range s.Outcomes {
		msg.Outcomes[i] = OutcomeOdds{
			OutcomeID:  e.OutcomeID,
			Label:      e.Label,
			PoolTotal:  e.Total,
			Percentage: s.Odds[e.OutcomeID],
		}
	}
	return msg
}
