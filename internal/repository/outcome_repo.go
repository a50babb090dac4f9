package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wagerpool/parimutuel/internal/domain"
)

// OutcomeRepository is the pool ledger: the single choke point through which
// every per-outcome stake total mutation flows.  Stake confirmation and
// cancellation refunds both go through AddStake/RemoveStake so the
// non-negative invariant is enforced in exactly one place; nothing else in
// the codebase touches outcomes.pool_total.
type OutcomeRepository struct {
	db *sqlx.DB
}

// NewOutcomeRepository creates a new OutcomeRepository.
func NewOutcomeRepository(db *sqlx.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// AddStake increases an outcome's pool total by amount inside an existing
// transaction.  amount must be a positive integer; the outcome must belong to
// the given market.
func (r *OutcomeRepository) AddStake(ctx context.Context, tx *sqlx.Tx, marketID, outcomeID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("outcome_repo.AddStake: %w: %d", domain.ErrInvalidStake, amount)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE outcomes
		SET pool_total = pool_total + $1
		WHERE id = $2 AND market_id = $3`,
		amount, outcomeID, marketID)
	if err != nil {
		return fmt.Errorf("outcome_repo.AddStake: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUnknownOutcome
	}
	return nil
}

// RemoveStake decreases an outcome's pool total by amount inside an existing
// transaction.  Used only when a committed stake leaves the pool again
// (market cancellation refunds).  A decrement that would drive the total
// negative is a fatal invariant violation, not a recoverable error: the
// guarded UPDATE refuses it and ErrNegativePool surfaces to the caller.
func (r *OutcomeRepository) RemoveStake(ctx context.Context, tx *sqlx.Tx, marketID, outcomeID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("outcome_repo.RemoveStake: %w: %d", domain.ErrInvalidStake, amount)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE outcomes
		SET pool_total = pool_total - $1
		WHERE id = $2 AND market_id = $3 AND pool_total >= $1`,
		amount, outcomeID, marketID)
	if err != nil {
		return fmt.Errorf("outcome_repo.RemoveStake: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish unknown outcome from the negative-total invariant case.
		var exists bool
		checkErr := tx.GetContext(ctx, &exists,
			`SELECT true FROM outcomes WHERE id = $1 AND market_id = $2`, outcomeID, marketID)
		if checkErr != nil {
			if errors.Is(checkErr, sql.ErrNoRows) {
				return domain.ErrUnknownOutcome
			}
			return fmt.Errorf("outcome_repo.RemoveStake check: %w", checkErr)
		}
		return fmt.Errorf("outcome_repo.RemoveStake: removing %d from outcome %s: %w",
			amount, outcomeID, domain.ErrNegativePool)
	}
	return nil
}

// Snapshot returns the current per-outcome totals for a market.  Read-only,
// no side effects; feeds odds display and payout computation.
func (r *OutcomeRepository) Snapshot(ctx context.Context, marketID uuid.UUID) (domain.PoolSnapshot, error) {
	var outcomes []domain.Outcome
	err := r.db.SelectContext(ctx, &outcomes,
		`SELECT * FROM outcomes WHERE market_id = $1 ORDER BY label ASC`, marketID)
	if err != nil {
		return domain.PoolSnapshot{}, fmt.Errorf("outcome_repo.Snapshot: %w", err)
	}
	if len(outcomes) == 0 {
		return domain.PoolSnapshot{}, domain.ErrMarketNotFound
	}

	entries := make([]domain.PoolEntry, len(outcomes))
	for i, o := range outcomes {
		entries[i] = domain.PoolEntry{OutcomeID: o.ID, Label: o.Label, Total: o.PoolTotal}
	}
	return domain.PoolSnapshot{MarketID: marketID, Entries: entries}, nil
}
