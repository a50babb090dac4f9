package ws

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wagerpool/parimutuel/internal/domain"
)

func TestOddsUpdateFromSummary(t *testing.T) {
	yesID, noID := uuid.New(), uuid.New()
	summary := &domain.MarketSummary{
		ID:     uuid.New(),
		Title:  "BTC above 100k by Friday?",
		Binary: true,
		Outcomes: []domain.PoolEntry{
			{OutcomeID: yesID, Label: "Yes", Total: 600},
			{OutcomeID: noID, Label: "No", Total: 400},
		},
		Odds:        map[uuid.UUID]int{yesID: 60, noID: 40},
		TotalPool:   1000,
		ClosesAt:    time.Now().UTC().Add(time.Hour),
		TimeLeftSec: 3600,
	}

	msg := OddsUpdateFromSummary(summary)

	if msg.Type != MsgTypeOddsUpdate {
		t.Errorf("type = %q, want %q", msg.Type, MsgTypeOddsUpdate)
	}
	if msg.MarketID != summary.ID || msg.TotalPool != 1000 || !msg.Binary {
		t.Errorf("header fields not carried over: %+v", msg)
	}
	if len(msg.Outcomes) != 2 {
		t.Fatalf("outcomes = %d entries, want 2", len(msg.Outcomes))
	}
	for _, o := range msg.Outcomes {
		want := summary.Odds[o.OutcomeID]
		if o.Percentage != want {
			t.Errorf("outcome %s percentage = %d, want %d", o.Label, o.Percentage, want)
		}
	}
	if msg.Outcomes[0].PoolTotal != 600 || msg.Outcomes[1].PoolTotal != 400 {
		t.Errorf("pool totals not carried over: %+v", msg.Outcomes)
	}
}

func TestOddsUpdateFromSummary_MissingOdds(t *testing.T) {
	id := uuid.New()
	summary := &domain.MarketSummary{
		ID:       uuid.New(),
		Outcomes: []domain.PoolEntry{{OutcomeID: id, Label: "yes"}},
		Odds:     map[uuid.UUID]int{},
	}
	msg := OddsUpdateFromSummary(summary)
	if msg.Outcomes[0].Percentage != 0 {
		t.Errorf("absent odds entry should map to 0, got %d", msg.Outcomes[0].Percentage)
	}
}
