package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wagerpool/parimutuel/internal/domain"
)

// BetRepository handles all database operations for Bets.  Bets are never
// physically deleted; every lifecycle move is a status-guarded UPDATE.
type BetRepository struct {
	db *sqlx.DB
}

// NewBetRepository creates a new BetRepository.
func NewBetRepository(db *sqlx.DB) *BetRepository {
	return &BetRepository{db: db}
}

// Create inserts a new pending bet.
func (r *BetRepository) Create(ctx context.Context, b *domain.Bet) error {
	query := `
		INSERT INTO bets
			(id, user_id, market_id, outcome_id, stake, status, placed_at)
		VALUES
			(:id, :user_id, :market_id, :outcome_id, :stake, :status, :placed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, b); err != nil {
		return fmt.Errorf("bet_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a bet by its primary key.
func (r *BetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	var b domain.Bet
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBetNotFound
		}
		return nil, fmt.Errorf("bet_repo.GetByID: %w", err)
	}
	return &b, nil
}

// GetByUserID returns a user's bet history, paginated.
func (r *BetRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE user_id = $1 ORDER BY placed_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.GetByUserID: %w", err)
	}
	return bets, nil
}

// GetByMarketAndStatus enumerates all bets in a market with the given status.
// Resolution relies on the (market_id, status) index to walk every confirmed
// bet exactly once.
func (r *BetRepository) GetByMarketAndStatus(ctx context.Context, marketID uuid.UUID, status domain.BetStatus) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE market_id = $1 AND status = $2 ORDER BY placed_at ASC`,
		marketID, string(status))
	if err != nil {
		return nil, fmt.Errorf("bet_repo.GetByMarketAndStatus: %w", err)
	}
	return bets, nil
}

// Confirm transitions a bet from pending to confirmed inside an existing
// transaction, storing the external payment reference.  The WHERE
// status='pending' guard makes confirmation idempotent under at-least-once
// delivery: of any number of concurrent or repeated callers, exactly one sees
// rows-affected = 1 and credits the pool; the rest get ErrAlreadyConfirmed
// (benign) or ErrBetNotPending (terminal state) and mutate nothing.
func (r *BetRepository) Confirm(ctx context.Context, tx *sqlx.Tx, betID uuid.UUID, paymentRef string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE bets
		SET status       = 'confirmed',
		    payment_ref  = $1,
		    confirmed_at = now()
		WHERE id = $2 AND status = 'pending'`,
		paymentRef, betID)
	if err != nil {
		return fmt.Errorf("bet_repo.Confirm: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		err = tx.GetContext(ctx, &status, `SELECT status FROM bets WHERE id = $1`, betID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrBetNotFound
			}
			return fmt.Errorf("bet_repo.Confirm status check: %w", err)
		}
		if domain.BetStatus(status) == domain.BetStatusConfirmed {
			return domain.ErrAlreadyConfirmed
		}
		return domain.ErrBetNotPending
	}
	return nil
}

// Settle transitions a confirmed bet to won or lost, recording the computed
// payout for winners.  The status='confirmed' guard makes per-bet settlement
// idempotent: a resumed resolution skips bets already settled by an earlier
// attempt (rows-affected = 0 is reported as ErrBetNotPending and the caller
// moves on).
func (r *BetRepository) Settle(ctx context.Context, betID uuid.UUID, status domain.BetStatus, payout int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bets
		SET status     = $1,
		    payout     = $2,
		    settled_at = now()
		WHERE id = $3 AND status = 'confirmed'`,
		string(status), payout, betID)
	if err != nil {
		return fmt.Errorf("bet_repo.Settle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrBetNotPending
	}
	return nil
}

// SetPayoutRef records the payment reference returned by a disbursement
// (payout for a won bet, stake return for a cancellation refund).  Only fills
// an empty slot so a retried send can never overwrite the reference of an
// already-disbursed payment.
func (r *BetRepository) SetPayoutRef(ctx context.Context, betID uuid.UUID, payoutRef string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bets
		SET payout_ref = $1
		WHERE id = $2 AND status IN ('won','refunded') AND payout_ref IS NULL`,
		payoutRef, betID)
	if err != nil {
		return fmt.Errorf("bet_repo.SetPayoutRef: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrBetNotPending
	}
	return nil
}

// GetUnpaidWon returns won bets whose payout has not been disbursed yet,
// across all markets.  Fed to the settlement-retry sweep.
func (r *BetRepository) GetUnpaidWon(ctx context.Context, limit int) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets
		 WHERE status = 'won' AND payout IS NOT NULL AND payout_ref IS NULL
		 ORDER BY settled_at ASC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.GetUnpaidWon: %w", err)
	}
	return bets, nil
}

// Refund moves a confirmed bet to refunded inside an existing transaction,
// recording the stake as the refund payout.  Used by market cancellation.
func (r *BetRepository) Refund(ctx context.Context, tx *sqlx.Tx, betID uuid.UUID, stake int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE bets
		SET status     = 'refunded',
		    payout     = $1,
		    settled_at = now()
		WHERE id = $2 AND status = 'confirmed'`,
		stake, betID)
	if err != nil {
		return fmt.Errorf("bet_repo.Refund: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrBetNotPending
	}
	return nil
}

// RefundPendingBulk flips every pending bet of a market to refunded.  Pending
// stakes never entered the pool, so there is nothing to remove from the
// ledger and nothing to disburse.
func (r *BetRepository) RefundPendingBulk(ctx context.Context, marketID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bets
		SET status = 'refunded', settled_at = now()
		WHERE market_id = $1 AND status = 'pending'`,
		marketID)
	if err != nil {
		return 0, fmt.Errorf("bet_repo.RefundPendingBulk: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ExpirePending refunds pending bets older than the cutoff whose market is
// still active.  Pending bets on resolved markets are deliberately excluded:
// a late payment against a closed market is an operator-reconciliation case,
// not an automatic refund.
func (r *BetRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bets b
		SET status = 'refunded', settled_at = now()
		FROM markets m
		WHERE m.id = b.market_id
		  AND b.status = 'pending'
		  AND b.placed_at < $1
		  AND m.status = 'active'`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("bet_repo.ExpirePending: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SumPayoutsByMarket returns the total payout recorded across a market's won
// bets.  Settlement derives the house residue from this durable sum rather
// than a single run's accumulator, so a resumed settlement recomputes the
// same figure.
func (r *BetRepository) SumPayoutsByMarket(ctx context.Context, marketID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(payout), 0) FROM bets WHERE market_id = $1 AND status = 'won'`,
		marketID)
	if err != nil {
		return 0, fmt.Errorf("bet_repo.SumPayoutsByMarket: %w", err)
	}
	return total, nil
}

// SumByMarketAndStatuses returns the total stake of a market's bets across
// the given statuses.  Used by conservation checks in the admin panel.
func (r *BetRepository) SumByMarketAndStatuses(ctx context.Context, marketID uuid.UUID, statuses []domain.BetStatus) (int64, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	query, args, err := sqlx.In(
		`SELECT COALESCE(SUM(stake), 0) FROM bets WHERE market_id = ? AND status IN (?)`,
		marketID, ss)
	if err != nil {
		return 0, fmt.Errorf("bet_repo.SumByMarketAndStatuses: build query: %w", err)
	}
	var total int64
	if err = r.db.GetContext(ctx, &total, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("bet_repo.SumByMarketAndStatuses: %w", err)
	}
	return total, nil
}
