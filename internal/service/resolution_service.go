package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wagerpool/parimutuel/internal/domain"
	"github.com/wagerpool/parimutuel/internal/payment"
	"github.com/wagerpool/parimutuel/internal/repository"
)

// ResolutionService settles markets: it flips an active market to its
// terminal status, classifies every confirmed bet as won or lost, computes
// pari-mutuel payouts, and disburses them through the payment sender.
//
// Settlement is idempotent per bet, not all-or-nothing per market.  The
// market status flip is the only global gate (the double-resolution guard);
// after it, each bet is settled independently so a crash or a failed payout
// send is resumable without re-settling — or re-paying — bets that already
// went through.
type ResolutionService struct {
	db          *sqlx.DB
	marketRepo  *repository.MarketRepository
	betRepo     *repository.BetRepository
	outcomeRepo *repository.OutcomeRepository
	sender      payment.Sender
}

// NewResolutionService builds a ResolutionService.
func NewResolutionService(
	db *sqlx.DB,
	marketRepo *repository.MarketRepository,
	betRepo *repository.BetRepository,
	outcomeRepo *repository.OutcomeRepository,
	sender payment.Sender,
) *ResolutionService {
	return &ResolutionService{
		db:          db,
		marketRepo:  marketRepo,
		betRepo:     betRepo,
		outcomeRepo: outcomeRepo,
		sender:      sender,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Resolve
// ──────────────────────────────────────────────────────────────────────────────

// Resolve settles a market with the given winning outcome.
//
// Preconditions: the market is active and, unless force is set, its close
// time has passed (force exists for operator override of markets that
// concluded ahead of schedule or were submitted in error).
//
// The status flip to resolved happens first and is atomic; it is the
// mechanism that rejects any second resolution.  The pool snapshot is taken
// after the flip, so it reflects every confirmation that committed before
// resolution began: the flip's UPDATE waits out the shared market-row locks
// in-flight confirmations hold, and any confirmation arriving later observes
// the terminal status under its own lock and is refused.  No confirmed stake
// can be silently excluded.
func (s *ResolutionService) Resolve(ctx context.Context, marketID, winningOutcomeID uuid.UUID, force bool) ([]domain.SettlementResult, error) {
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("resolution_service.Resolve: get market: %w", err)
	}
	if !market.IsActive() {
		return nil, domain.ErrMarketAlreadyResolved
	}
	if market.OutcomeByID(winningOutcomeID) == nil {
		return nil, domain.ErrUnknownOutcome
	}
	if !force && time.Now().UTC().Before(market.ClosesAt) {
		return nil, domain.ErrMarketNotClosable
	}

	// Step 1: atomic status flip — the double-resolution guard.
	if err = s.marketRepo.Resolve(ctx, marketID, winningOutcomeID); err != nil {
		return nil, fmt.Errorf("resolution_service.Resolve: %w", err)
	}

	slog.Info("market resolved, settling bets",
		"market_id", marketID, "winning_outcome_id", winningOutcomeID, "force", force)

	return s.settleConfirmedBets(ctx, marketID, winningOutcomeID)
}

// settleConfirmedBets runs steps 2–4 of resolution: snapshot, per-bet
// classification and payout, fee recording.  Also the entry point for
// resuming a crashed resolution (see ResumeSettlement).
func (s *ResolutionService) settleConfirmedBets(ctx context.Context, marketID, winningOutcomeID uuid.UUID) ([]domain.SettlementResult, error) {
	// Step 2: final pool snapshot.  Pools are frozen now — confirmations are
	// rejected against a non-active market.
	snapshot, err := s.outcomeRepo.Snapshot(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("resolution_service: snapshot: %w", err)
	}
	totalPool := snapshot.TotalPool()
	winnerTotal, ok := snapshot.TotalFor(winningOutcomeID)
	if !ok {
		return nil, domain.ErrUnknownOutcome
	}

	bets, err := s.betRepo.GetByMarketAndStatus(ctx, marketID, domain.BetStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("resolution_service: enumerate confirmed bets: %w", err)
	}

	// Step 3: classify and settle each bet independently.
	results := make([]domain.SettlementResult, 0, len(bets))
	for _, bet := range bets {
		res, settleErr := s.settleBet(ctx, bet, winningOutcomeID, winnerTotal, totalPool)
		if settleErr != nil {
			// Invariant violations halt the whole settlement run; nothing is
			// "fixed up" automatically.
			if domain.IsInvariant(settleErr) {
				slog.Error("settlement halted on invariant violation",
					"market_id", marketID, "bet_id", bet.ID, "err", settleErr)
				return results, settleErr
			}
			// Collaborator/storage failure for one bet: record it and keep
			// going; the retry sweep re-drives this bet later.
			slog.Error("bet settlement failed, will retry",
				"market_id", marketID, "bet_id", bet.ID, "err", settleErr)
			res.Err = settleErr.Error()
		}
		results = append(results, res)
	}

	// Step 4: record the platform's cut.  Truncation residue stays with the
	// platform, it is not redistributed.  The paid-out total is read back
	// from the durable per-bet payout records, not this run's results, so a
	// resumed settlement re-records the correct residue over whatever a
	// partial earlier run wrote.
	fee := domain.FeeAmount(totalPool, domain.FeeRate)
	paidOut, err := s.betRepo.SumPayoutsByMarket(ctx, marketID)
	if err != nil {
		return results, fmt.Errorf("resolution_service: sum payouts: %w", err)
	}
	residue := totalPool - fee - paidOut
	if residue < 0 {
		slog.Error("settlement paid out more than the net pool",
			"market_id", marketID, "total_pool", totalPool, "fee", fee, "paid_out", paidOut)
		return results, fmt.Errorf("resolution_service: market %s: %w", marketID, domain.ErrNegativePool)
	}
	if err = s.marketRepo.RecordFee(ctx, marketID, fee, residue); err != nil {
		return results, fmt.Errorf("resolution_service: record fee: %w", err)
	}

	slog.Info("market settlement complete",
		"market_id", marketID, "bets", len(results),
		"total_pool", totalPool, "fee", fee, "paid_out", paidOut, "residue", residue)
	return results, nil
}

// settleBet classifies one confirmed bet and, for winners, computes the
// payout and disburses it.  The confirmed→won/lost flip is status-guarded, so
// a bet settled by an earlier attempt is skipped, never re-settled.
func (s *ResolutionService) settleBet(ctx context.Context, bet *domain.Bet, winningOutcomeID uuid.UUID, winnerTotal, totalPool int64) (domain.SettlementResult, error) {
	result := domain.SettlementResult{BetID: bet.ID}

	if bet.OutcomeID != winningOutcomeID {
		result.Status = domain.BetStatusLost
		if err := s.betRepo.Settle(ctx, bet.ID, domain.BetStatusLost, 0); err != nil {
			if errors.Is(err, domain.ErrBetNotPending) {
				return result, nil // already settled by an earlier attempt
			}
			return result, fmt.Errorf("mark lost: %w", err)
		}
		return result, nil
	}

	payout, err := domain.ComputePayout(bet.Stake, winnerTotal, totalPool, domain.FeeRate)
	if err != nil {
		return result, err
	}
	result.Status = domain.BetStatusWon
	result.Payout = payout

	if err = s.betRepo.Settle(ctx, bet.ID, domain.BetStatusWon, payout); err != nil {
		if errors.Is(err, domain.ErrBetNotPending) {
			result.Payout = 0 // settled earlier; its payout is already on record
			return result, nil
		}
		return result, fmt.Errorf("mark won: %w", err)
	}

	// Disbursement happens after the settlement record is durable, so a crash
	// here leaves a won bet with payout and no payout_ref — exactly what the
	// retry sweep looks for.  The bet id doubles as the idempotency key so
	// the processor can de-duplicate resent payouts.
	ref, err := s.sender.Send(ctx, bet.UserID.String(), payout, bet.ID.String())
	if err != nil {
		return result, fmt.Errorf("disburse payout: %w", err)
	}
	if err = s.betRepo.SetPayoutRef(ctx, bet.ID, ref); err != nil {
		return result, fmt.Errorf("store payout ref: %w", err)
	}
	result.PayoutRef = ref
	return result, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ResumeSettlement
// ──────────────────────────────────────────────────────────────────────────────

// ResumeSettlement re-drives settlement for an already-resolved market:
// confirmed bets left behind by a crashed resolution are classified and won
// bets with an undisbursed payout are re-sent.  Safe to call any number of
// times; fully settled bets are untouched.
func (s *ResolutionService) ResumeSettlement(ctx context.Context, marketID uuid.UUID) ([]domain.SettlementResult, error) {
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("resolution_service.ResumeSettlement: get market: %w", err)
	}
	if !market.IsResolved() || market.ResolvedOutcomeID == nil {
		return nil, domain.ErrMarketClosed
	}

	results, err := s.settleConfirmedBets(ctx, marketID, *market.ResolvedOutcomeID)
	if err != nil {
		return results, err
	}

	// Re-drive disbursements that were settled but never paid.
	won, err := s.betRepo.GetByMarketAndStatus(ctx, marketID, domain.BetStatusWon)
	if err != nil {
		return results, fmt.Errorf("resolution_service.ResumeSettlement: enumerate won: %w", err)
	}
	for _, bet := range won {
		if !bet.NeedsDisbursement() {
			continue
		}
		res := domain.SettlementResult{BetID: bet.ID, Status: domain.BetStatusWon, Payout: *bet.Payout}
		ref, sendErr := s.sender.Send(ctx, bet.UserID.String(), *bet.Payout, bet.ID.String())
		if sendErr != nil {
			slog.Error("payout retry failed", "bet_id", bet.ID, "err", sendErr)
			res.Err = sendErr.Error()
			results = append(results, res)
			continue
		}
		if err = s.betRepo.SetPayoutRef(ctx, bet.ID, ref); err != nil {
			res.Err = err.Error()
		} else {
			res.PayoutRef = ref
		}
		results = append(results, res)
	}
	return results, nil
}

// RetryUnpaidPayouts scans for won bets with an undisbursed payout across all
// markets and re-sends them.  Called by the scheduler sweep.
func (s *ResolutionService) RetryUnpaidPayouts(ctx context.Context, limit int) error {
	bets, err := s.betRepo.GetUnpaidWon(ctx, limit)
	if err != nil {
		return fmt.Errorf("resolution_service.RetryUnpaidPayouts: %w", err)
	}
	for _, bet := range bets {
		ref, sendErr := s.sender.Send(ctx, bet.UserID.String(), *bet.Payout, bet.ID.String())
		if sendErr != nil {
			slog.Warn("payout retry failed", "bet_id", bet.ID, "err", sendErr)
			continue
		}
		if err = s.betRepo.SetPayoutRef(ctx, bet.ID, ref); err != nil {
			slog.Error("payout retry: store ref", "bet_id", bet.ID, "err", err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancel
// ──────────────────────────────────────────────────────────────────────────────

// Cancel voids a market: the market moves to cancelled, every pending bet is
// marked refunded (its stake never entered the pool), and every confirmed bet
// is refunded its original stake — removed from the pool ledger and returned
// through the payment sender.  No redistribution, no fee.
//
// Like resolution, cancellation is resumable: an already-cancelled market
// re-enters the refund loop, where every step is status-guarded, so a crash
// mid-refund is recovered by calling Cancel again.  Only a resolved market is
// refused.
func (s *ResolutionService) Cancel(ctx context.Context, marketID uuid.UUID) ([]domain.SettlementResult, error) {
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("resolution_service.Cancel: get market: %w", err)
	}
	if market.IsResolved() {
		return nil, domain.ErrMarketAlreadyResolved
	}

	// Same guard pattern as Resolve: only one cancel wins the status flip.
	// A market that already left active skips the flip and proceeds straight
	// to the refund sweep.
	if market.IsActive() {
		if err = s.marketRepo.Cancel(ctx, marketID); err != nil {
			return nil, fmt.Errorf("resolution_service.Cancel: %w", err)
		}
	}

	pendingRefunded, err := s.betRepo.RefundPendingBulk(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("resolution_service.Cancel: refund pending: %w", err)
	}

	confirmed, err := s.betRepo.GetByMarketAndStatus(ctx, marketID, domain.BetStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("resolution_service.Cancel: enumerate confirmed: %w", err)
	}

	results := make([]domain.SettlementResult, 0, len(confirmed))
	for _, bet := range confirmed {
		res, refundErr := s.refundBet(ctx, bet)
		if refundErr != nil {
			if domain.IsInvariant(refundErr) {
				slog.Error("cancellation halted on invariant violation",
					"market_id", marketID, "bet_id", bet.ID, "err", refundErr)
				return results, refundErr
			}
			slog.Error("bet refund failed, will retry",
				"market_id", marketID, "bet_id", bet.ID, "err", refundErr)
			res.Err = refundErr.Error()
		}
		results = append(results, res)
	}

	slog.Info("market cancelled",
		"market_id", marketID, "pending_refunded", pendingRefunded, "confirmed_refunded", len(results))
	return results, nil
}

// refundBet moves one confirmed bet to refunded and removes its stake from
// the pool ledger in a single transaction, then returns the stake through the
// payment sender.
func (s *ResolutionService) refundBet(ctx context.Context, bet *domain.Bet) (domain.SettlementResult, error) {
	result := domain.SettlementResult{BetID: bet.ID, Status: domain.BetStatusRefunded, Payout: bet.Stake}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.betRepo.Refund(ctx, tx, bet.ID, bet.Stake); err != nil {
		if errors.Is(err, domain.ErrBetNotPending) {
			// Refunded by an earlier attempt.  Clearing err disarms the
			// deferred rollback, so release the transaction here.
			_ = tx.Rollback()
			err = nil
			result.Payout = 0
			return result, nil
		}
		return result, fmt.Errorf("mark refunded: %w", err)
	}
	if err = s.outcomeRepo.RemoveStake(ctx, tx, bet.MarketID, bet.OutcomeID, bet.Stake); err != nil {
		return result, fmt.Errorf("remove stake: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit: %w", err)
	}

	ref, err := s.sender.Send(ctx, bet.UserID.String(), bet.Stake, "refund-"+bet.ID.String())
	if err != nil {
		return result, fmt.Errorf("return stake: %w", err)
	}
	if err = s.betRepo.SetPayoutRef(ctx, bet.ID, ref); err != nil {
		return result, fmt.Errorf("store refund ref: %w", err)
	}
	result.PayoutRef = ref
	return result, nil
}
