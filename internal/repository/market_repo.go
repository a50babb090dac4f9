// Package repository contains all database access for markets, outcomes and
// bets.  Every state-machine transition is a conditional UPDATE guarded by the
// current status and a rows-affected check, so concurrent callers race on the
// database row rather than in application memory.
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

// MarketRepository handles all database operations for Markets.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository creates a new MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create inserts a market row and its outcome rows in a single transaction.
func (r *MarketRepository) Create(ctx context.Context, m *domain.Market) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("market_repo.Create: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO markets
			(id, title, category, status, fee_collected, closes_at, created_at, updated_at)
		VALUES
			(:id, :title, :category, :status, :fee_collected, :closes_at, :created_at, :updated_at)`, m)
	if err != nil {
		return fmt.Errorf("market_repo.Create: insert market: %w", err)
	}

	for i := range m.Outcomes {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO outcomes (id, market_id, label, pool_total)
			VALUES (:id, :market_id, :label, :pool_total)`, &m.Outcomes[i])
		if err != nil {
			return fmt.Errorf("market_repo.Create: insert outcome %q: %w", m.Outcomes[i].Label, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("market_repo.Create: commit: %w", err)
	}
	return nil
}

// GetByID fetches a market and its outcomes.
func (r *MarketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := r.db.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByID: %w", err)
	}
	if err = r.loadOutcomes(ctx, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// loadOutcomes populates m.Outcomes in stable creation order.
func (r *MarketRepository) loadOutcomes(ctx context.Context, m *domain.Market) error {
	err := r.db.SelectContext(ctx, &m.Outcomes,
		`SELECT * FROM outcomes WHERE market_id = $1 ORDER BY label ASC`, m.ID)
	if err != nil {
		return fmt.Errorf("market_repo.loadOutcomes: %w", err)
	}
	return nil
}

// LockActive takes a shared lock on the market row inside the caller's
// transaction and verifies the market still accepts confirmations.  The
// resolve/cancel status flip is an UPDATE on the same row and therefore needs
// the conflicting exclusive lock: a confirmation holding this lock commits
// before resolution can snapshot the pool, and one acquiring it after the
// flip observes the terminal status here and gets ErrMarketClosed.
func (r *MarketRepository) LockActive(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID) error {
	var row struct {
		Status   domain.MarketStatus `db:"status"`
		ClosesAt time.Time           `db:"closes_at"`
	}
	err := tx.GetContext(ctx, &row,
		`SELECT status, closes_at FROM markets WHERE id = $1 FOR SHARE`, marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrMarketNotFound
		}
		return fmt.Errorf("market_repo.LockActive: %w", err)
	}
	if row.Status != domain.StatusActive || !time.Now().UTC().Before(row.ClosesAt) {
		return domain.ErrMarketClosed
	}
	return nil
}

// Resolve atomically flips an active market to resolved, recording the
// winning outcome.  The WHERE status='active' guard is the double-resolution
// lock: only one caller ever observes rows-affected = 1; every other resolve
// attempt gets ErrMarketAlreadyResolved.
func (r *MarketRepository) Resolve(ctx context.Context, marketID, winningOutcomeID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE markets
		SET status              = 'resolved',
		    resolved_outcome_id = $1,
		    resolved_at         = now(),
		    updated_at          = now()
		WHERE id = $2 AND status = 'active'`,
		winningOutcomeID, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.Resolve: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the market does not exist or it already left 'active'.
		if _, lookupErr := r.GetByID(ctx, marketID); lookupErr != nil {
			return lookupErr
		}
		return domain.ErrMarketAlreadyResolved
	}
	return nil
}

// Cancel atomically flips an active market to cancelled.  Same guard pattern
// as Resolve.
func (r *MarketRepository) Cancel(ctx context.Context, marketID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE markets
		SET status = 'cancelled', resolved_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'active'`,
		marketID)
	if err != nil {
		return fmt.Errorf("market_repo.Cancel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, lookupErr := r.GetByID(ctx, marketID); lookupErr != nil {
			return lookupErr
		}
		return domain.ErrMarketAlreadyResolved
	}
	return nil
}

// RecordFee sets the fee the platform kept from a resolved market and writes
// the house ledger row.  Upserts so a resumed resolution, which recomputes
// the residue from the durable payout records, overwrites any figure a
// partial earlier run recorded.
func (r *MarketRepository) RecordFee(ctx context.Context, marketID uuid.UUID, fee, residue int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE markets SET fee_collected = $1, updated_at = now() WHERE id = $2`,
		fee, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.RecordFee: update market: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO house_ledger (market_id, fee_collected, residue, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (market_id) DO UPDATE
		SET fee_collected = EXCLUDED.fee_collected, residue = EXCLUDED.residue`,
		marketID, fee, residue)
	if err != nil {
		return fmt.Errorf("market_repo.RecordFee: ledger: %w", err)
	}
	return nil
}

// List returns a paginated slice of markets filtered by optional status,
// with outcomes loaded.  status="" returns all statuses.
// Returns (markets, totalCount, error).
func (r *MarketRepository) List(ctx context.Context, limit, offset int, status string) ([]*domain.Market, int, error) {
	var markets []*domain.Market
	var total int

	if status != "" {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM markets WHERE status = $1`, status); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &markets,
			`SELECT * FROM markets WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM markets`); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &markets,
			`SELECT * FROM markets ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
		}
	}

	for _, m := range markets {
		if err := r.loadOutcomes(ctx, m); err != nil {
			return nil, 0, err
		}
	}
	return markets, total, nil
}

// GetHistory returns resolved/cancelled markets in descending time order.
func (r *MarketRepository) GetHistory(ctx context.Context, limit, offset int) ([]*domain.Market, error) {
	var markets []*domain.Market
	err := r.db.SelectContext(ctx, &markets,
		`SELECT * FROM markets
		 WHERE status IN ('resolved','cancelled')
		 ORDER BY resolved_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("market_repo.GetHistory: %w", err)
	}
	for _, m := range markets {
		if err := r.loadOutcomes(ctx, m); err != nil {
			return nil, err
		}
	}
	return markets, nil
}

// FinanceReport holds aggregated fee data for a date range.
type FinanceReport struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	FeeCollected int64     `json:"fee_collected"`
	Residue      int64     `json:"residue"`
	TotalVolume  int64     `json:"total_volume"`
	MarketCount  int       `json:"market_count"`
}

// GetFinanceReport aggregates house_ledger and market data for a date range.
func (r *MarketRepository) GetFinanceReport(ctx context.Context, from, to time.Time) (*FinanceReport, error) {
	type row struct {
		FeeCollected int64 `db:"fee_collected"`
		Residue      int64 `db:"residue"`
		Count        int   `db:"count"`
	}
	var fin row
	err := r.db.GetContext(ctx, &fin, `
		SELECT
			COALESCE(SUM(fee_collected), 0) AS fee_collected,
			COALESCE(SUM(residue), 0)       AS residue,
			COUNT(*)                         AS count
		FROM house_ledger
		WHERE created_at >= $1 AND created_at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("market_repo.GetFinanceReport ledger: %w", err)
	}

	var volume int64
	err = r.db.GetContext(ctx, &volume, `
		SELECT COALESCE(SUM(o.pool_total), 0)
		FROM outcomes o
		JOIN markets m ON m.id = o.market_id
		WHERE m.status = 'resolved'
		  AND m.resolved_at >= $1 AND m.resolved_at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("market_repo.GetFinanceReport volume: %w", err)
	}

	return &FinanceReport{
		From:         from,
		To:           to,
		FeeCollected: fin.FeeCollected,
		Residue:      fin.Residue,
		TotalVolume:  volume,
		MarketCount:  fin.Count,
	}, nil
}
