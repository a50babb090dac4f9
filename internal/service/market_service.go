package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wagerpool/parimutuel/internal/domain"
	"github.com/wagerpool/parimutuel/internal/repository"
)

// MarketService covers market creation and the read side: listings, detail
// views and live odds.  Settlement lives in ResolutionService.
type MarketService struct {
	marketRepo  *repository.MarketRepository
	outcomeRepo *repository.OutcomeRepository
}

// NewMarketService creates a MarketService.
func NewMarketService(marketRepo *repository.MarketRepository, outcomeRepo *repository.OutcomeRepository) *MarketService {
	return &MarketService{marketRepo: marketRepo, outcomeRepo: outcomeRepo}
}

// CreateMarketRequest carries the operator input for a new market.
type CreateMarketRequest struct {
	Title    string    `json:"title"    binding:"required"`
	Category string    `json:"category"`
	ClosesAt time.Time `json:"closes_at" binding:"required"`
	Outcomes []string  `json:"outcomes" binding:"required"`
}

// CreateMarket validates and persists a new active market with empty pools.
// A market needs at least two outcomes with distinct labels; label identity
// is case-insensitive and whitespace-insensitive, matching how binary
// markets are classified later.
func (s *MarketService) CreateMarket(ctx context.Context, req CreateMarketRequest) (*domain.Market, error) {
	if len(req.Outcomes) < 2 {
		return nil, domain.ErrTooFewOutcomes
	}
	seen := make(map[string]struct{}, len(req.Outcomes))
	for _, label := range req.Outcomes {
		key := domain.NormaliseLabel(label)
		if key == "" {
			return nil, fmt.Errorf("%w: empty label", domain.ErrDuplicateOutcome)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateOutcome, label)
		}
		seen[key] = struct{}{}
	}
	if !req.ClosesAt.After(time.Now().UTC()) {
		return nil, domain.ErrMarketClosed
	}

	now := time.Now().UTC()
	market := &domain.Market{
		ID:        uuid.New(),
		Title:     req.Title,
		Category:  req.Category,
		Status:    domain.StatusActive,
		ClosesAt:  req.ClosesAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	market.Outcomes = make([]domain.Outcome, len(req.Outcomes))
	for i, label := range req.Outcomes {
		market.Outcomes[i] = domain.Outcome{
			ID:       uuid.New(),
			MarketID: market.ID,
			Label:    label,
		}
	}

	if err := s.marketRepo.Create(ctx, market); err != nil {
		return nil, fmt.Errorf("market_service.CreateMarket: %w", err)
	}
	return market, nil
}

// GetMarket returns a market with outcomes loaded.
func (s *MarketService) GetMarket(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	market, err := s.marketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service.GetMarket: %w", err)
	}
	return market, nil
}

// GetOdds returns the current display odds for a market, computed from the
// live pool snapshot.  Works for markets in any status; after resolution the
// snapshot is frozen, so these are the final odds.
func (s *MarketService) GetOdds(ctx context.Context, marketID uuid.UUID) (map[uuid.UUID]int, error) {
	snapshot, err := s.outcomeRepo.Snapshot(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("market_service.GetOdds: %w", err)
	}
	if len(snapshot.Entries) == 0 {
		return nil, domain.ErrMarketNotFound
	}
	return domain.ComputeOdds(snapshot), nil
}

// ListMarkets returns a paginated market list with an optional status filter.
func (s *MarketService) ListMarkets(ctx context.Context, limit, offset int, status string) ([]*domain.Market, int, error) {
	markets, total, err := s.marketRepo.List(ctx, limit, offset, status)
	if err != nil {
		return nil, 0, fmt.Errorf("market_service.ListMarkets: %w", err)
	}
	return markets, total, nil
}

// GetMarketHistory returns resolved and cancelled markets, newest first.
func (s *MarketService) GetMarketHistory(ctx context.Context, limit, offset int) ([]*domain.Market, error) {
	markets, err := s.marketRepo.GetHistory(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("market_service.GetMarketHistory: %w", err)
	}
	return markets, nil
}
