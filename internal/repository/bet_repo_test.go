package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wagerpool/parimutuel/internal/domain"
	"github.com/wagerpool/parimutuel/internal/repository"
)

// TestSweepMethodSignatures pins the repository surface the scheduler sweeps
// and the settlement accounting call into.  The expiry cutoff is a concrete
// time and the paid-out total comes back as a ledger amount; drift in these
// shapes should fail here rather than deep in the wiring.
func TestSweepMethodSignatures(t *testing.T) {
	var r *repository.BetRepository
	var _ func(context.Context, time.Time) (int64, error) = r.ExpirePending
	var _ func(context.Context, int) ([]*domain.Bet, error) = r.GetUnpaidWon
	var _ func(context.Context, uuid.UUID) (int64, error) = r.SumPayoutsByMarket
}
