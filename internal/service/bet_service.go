package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wagerpool/parimutuel/internal/config"
	"github.com/wagerpool/parimutuel/internal/domain"
	"github.com/wagerpool/parimutuel/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into BetService to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// Broadcaster is the interface the services and the scheduler need from the
// WS hub.  Implemented by ws.Hub.
type Broadcaster interface {
	BroadcastMarketUpdate(summary *domain.MarketSummary)
	BroadcastBetConfirmed(bet *domain.Bet)
	BroadcastMarketResolved(m *domain.Market)
	BroadcastMarketCancelled(marketID uuid.UUID)
	BroadcastNewMarket(m *domain.Market)
}

// ──────────────────────────────────────────────────────────────────────────────
// BetService
// ──────────────────────────────────────────────────────────────────────────────

// BetService orchestrates the bet lifecycle up to settlement: placement
// (pending, no pool mutation), payment confirmation (the only point where a
// stake enters the pool ledger), and expiry of stale unpaid bets.
type BetService struct {
	db          *sqlx.DB
	betRepo     *repository.BetRepository
	marketRepo  *repository.MarketRepository
	outcomeRepo *repository.OutcomeRepository
	cfg         *config.Config
	broadcaster Broadcaster // injected after the WS hub is built
}

// NewBetService creates a BetService.
func NewBetService(
	db *sqlx.DB,
	betRepo *repository.BetRepository,
	marketRepo *repository.MarketRepository,
	outcomeRepo *repository.OutcomeRepository,
	cfg *config.Config,
) *BetService {
	return &BetService{
		db:          db,
		betRepo:     betRepo,
		marketRepo:  marketRepo,
		outcomeRepo: outcomeRepo,
		cfg:         cfg,
	}
}

// SetBroadcaster injects the WS hub dependency post-construction.
func (s *BetService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBet validates the request and records a pending bet.  The stake is NOT
// added to the outcome pool here: displayed odds reflect only
// payment-verified money, and a pending bet is merely a record of intent
// until the payment watcher confirms it.
func (s *BetService) PlaceBet(ctx context.Context, req domain.PlaceBetRequest) (*domain.Bet, error) {
	if req.Stake <= 0 {
		return nil, domain.ErrInvalidStake
	}
	if req.Stake < s.cfg.Engine.MinStake {
		return nil, fmt.Errorf("%w: minimum is %d", domain.ErrInvalidStake, s.cfg.Engine.MinStake)
	}

	market, err := s.marketRepo.GetByID(ctx, req.MarketID)
	if err != nil {
		return nil, fmt.Errorf("bet_service.PlaceBet: get market: %w", err)
	}
	if !market.AcceptsBets(time.Now().UTC()) {
		return nil, domain.ErrMarketClosed
	}
	if market.OutcomeByID(req.OutcomeID) == nil {
		return nil, domain.ErrUnknownOutcome
	}

	bet := &domain.Bet{
		ID:        uuid.New(),
		UserID:    req.UserID,
		MarketID:  req.MarketID,
		OutcomeID: req.OutcomeID,
		Stake:     req.Stake,
		Status:    domain.BetStatusPending,
		PlacedAt:  time.Now().UTC(),
	}
	if err = s.betRepo.Create(ctx, bet); err != nil {
		return nil, fmt.Errorf("bet_service.PlaceBet: create bet: %w", err)
	}
	return bet, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ConfirmBet
// ──────────────────────────────────────────────────────────────────────────────

// ConfirmBet transitions a pending bet to confirmed and commits its stake
// into the outcome pool, both inside one transaction.
//
// The operation is idempotent under at-least-once callback delivery: the
// status-guarded UPDATE in the repository lets exactly one delivery win the
// confirmation race and credit the pool; every other delivery (same or
// different payment reference) observes the already-confirmed state, mutates
// nothing, and gets ErrAlreadyConfirmed — a benign condition, not a failure.
//
// Confirmation against a market that is already resolved or past its close
// time is rejected and the bet stays pending: a late payment for a closed
// market is an operator-reconciliation case, never an automatic refund.
// The authoritative market check runs inside the transaction as a shared
// lock on the market row; the resolve/cancel status flip needs the
// conflicting exclusive lock, so a confirmation either commits before
// settlement snapshots the pool or observes the terminal status and is
// rejected here — it can never land in between.
func (s *BetService) ConfirmBet(ctx context.Context, betID uuid.UUID, paymentRef string) (*domain.Bet, error) {
	bet, err := s.betRepo.GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("bet_service.ConfirmBet: get bet: %w", err)
	}
	if bet.Status == domain.BetStatusConfirmed {
		return bet, domain.ErrAlreadyConfirmed
	}
	if bet.Status.IsTerminal() {
		return nil, domain.ErrBetNotPending
	}

	market, err := s.marketRepo.GetByID(ctx, bet.MarketID)
	if err != nil {
		return nil, fmt.Errorf("bet_service.ConfirmBet: get market: %w", err)
	}
	if !market.IsActive() || !time.Now().UTC().Before(market.ClosesAt) {
		// Leave the bet pending for manual reconciliation.
		return nil, domain.ErrMarketClosed
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("bet_service.ConfirmBet: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Re-check under the row lock; the read above was only a fast path.
	// Resolution that already flipped the status is visible here, and one
	// racing us blocks on our shared lock until this transaction ends.
	if err = s.marketRepo.LockActive(ctx, tx, bet.MarketID); err != nil {
		return nil, err
	}

	if err = s.betRepo.Confirm(ctx, tx, betID, paymentRef); err != nil {
		if errors.Is(err, domain.ErrAlreadyConfirmed) {
			// Lost the race to a concurrent delivery; nothing to credit.
			// The deferred rollback releases the transaction.
			confirmed, loadErr := s.betRepo.GetByID(ctx, betID)
			if loadErr != nil {
				return nil, fmt.Errorf("bet_service.ConfirmBet: reload: %w", loadErr)
			}
			return confirmed, domain.ErrAlreadyConfirmed
		}
		return nil, fmt.Errorf("bet_service.ConfirmBet: %w", err)
	}

	// Single choke point: the pool is credited through the ledger only, in
	// the same transaction as the status flip, so the stake enters exactly
	// once or not at all.
	if err = s.outcomeRepo.AddStake(ctx, tx, bet.MarketID, bet.OutcomeID, bet.Stake); err != nil {
		return nil, fmt.Errorf("bet_service.ConfirmBet: add stake: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("bet_service.ConfirmBet: commit: %w", err)
	}

	go s.broadcastConfirmation(bet)

	confirmed, err := s.betRepo.GetByID(ctx, betID)
	if err != nil {
		// Commit succeeded; fall back to the in-memory view.
		now := time.Now().UTC()
		refCopy := paymentRef
		bet.Status = domain.BetStatusConfirmed
		bet.PaymentRef = &refCopy
		bet.ConfirmedAt = &now
		return bet, nil
	}
	return confirmed, nil
}

// broadcastConfirmation announces the confirmed bet and pushes refreshed odds
// for its market to all WS subscribers.  Runs in a goroutine; errors are
// swallowed (display is best-effort).
func (s *BetService) broadcastConfirmation(bet *domain.Bet) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastBetConfirmed(bet)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	market, err := s.marketRepo.GetByID(ctx, bet.MarketID)
	if err != nil {
		return
	}
	summary := market.ToSummary()
	s.broadcaster.BroadcastMarketUpdate(&summary)
}

// ──────────────────────────────────────────────────────────────────────────────
// ExpirePendingBets — called by the scheduler sweep
// ──────────────────────────────────────────────────────────────────────────────

// ExpirePendingBets refunds pending bets older than the configured TTL whose
// market is still active.  Their stake never entered the pool, so the ledger
// is untouched.  Pending bets on resolved markets are skipped (reconciliation
// case, see ConfirmBet).
func (s *BetService) ExpirePendingBets(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.Engine.PendingTTL)
	n, err := s.betRepo.ExpirePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("bet_service.ExpirePendingBets: %w", err)
	}
	if n > 0 {
		slog.Info("expired unpaid pending bets", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Query helpers
// ──────────────────────────────────────────────────────────────────────────────

// GetMyBets returns paginated bets for a user.
func (s *BetService) GetMyBets(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bet, error) {
	bets, err := s.betRepo.GetByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bet_service.GetMyBets: %w", err)
	}
	return bets, nil
}

// GetBetByID returns a single bet only if it belongs to userID.
func (s *BetService) GetBetByID(ctx context.Context, betID uuid.UUID, userID uuid.UUID) (*domain.Bet, error) {
	bet, err := s.betRepo.GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("bet_service.GetBetByID: %w", err)
	}
	if bet.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return bet, nil
}
