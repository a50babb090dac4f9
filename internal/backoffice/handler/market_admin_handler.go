package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wagerpool/parimutuel/internal/domain"
	"github.com/wagerpool/parimutuel/internal/repository"
	"github.com/wagerpool/parimutuel/internal/service"
)

// MarketAdminHandler serves /admin/markets endpoints: creation, inspection,
// resolution, cancellation and settlement repair.
type MarketAdminHandler struct {
	marketSvc     *service.MarketService
	resolutionSvc *service.ResolutionService
	betRepo       *repository.BetRepository
}

// NewMarketAdminHandler creates a MarketAdminHandler.
func NewMarketAdminHandler(
	marketSvc *service.MarketService,
	resolutionSvc *service.ResolutionService,
	betRepo *repository.BetRepository,
) *MarketAdminHandler {
	return &MarketAdminHandler{
		marketSvc:     marketSvc,
		resolutionSvc: resolutionSvc,
		betRepo:       betRepo,
	}
}

// List godoc
// GET /admin/markets?status=active&page=1&limit=50
func (h *MarketAdminHandler) List(c *gin.Context) {
	status := c.Query("status")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	markets, total, err := h.marketSvc.ListMarkets(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, markets, total, page, limit)
}

// Detail godoc
// GET /admin/markets/:id
//
// Includes a conservation check: confirmed + settled stakes must equal the
// pool total.  A mismatch is surfaced, never repaired here.
func (h *MarketAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	ctx := c.Request.Context()
	market, err := h.marketSvc.GetMarket(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	stakeSum, err := h.betRepo.SumByMarketAndStatuses(ctx, id, []domain.BetStatus{
		domain.BetStatusConfirmed, domain.BetStatusWon, domain.BetStatusLost,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	snap := market.Snapshot()

	respondSuccess(c, http.StatusOK, gin.H{
		"market":              market,
		"odds":                domain.ComputeOdds(snap),
		"pool_total":          snap.TotalPool(),
		"confirmed_stake_sum": stakeSum,
		"pool_balanced":       stakeSum == snap.TotalPool(),
	})
}

// Create godoc
// POST /admin/markets
// Body: {"title":"...","category":"...","closes_at":"2026-09-01T12:00:00Z","outcomes":["Yes","No"]}
func (h *MarketAdminHandler) Create(c *gin.Context) {
	var body service.CreateMarketRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	market, err := h.marketSvc.CreateMarket(c.Request.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTooFewOutcomes):
			respondError(c, http.StatusBadRequest, "ERR_TOO_FEW_OUTCOMES", err.Error())
		case errors.Is(err, domain.ErrDuplicateOutcome):
			respondError(c, http.StatusBadRequest, "ERR_DUPLICATE_OUTCOME", err.Error())
		case errors.Is(err, domain.ErrMarketClosed):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_CLOSE_TIME", "closes_at must be in the future")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusCreated, market)
}

// Resolve godoc
// POST /admin/markets/:id/resolve
// Body: {"winning_outcome_id":"uuid","force":false}
//
// force overrides the close-time check for markets whose real-world question
// concluded ahead of schedule.
func (h *MarketAdminHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	var body struct {
		WinningOutcomeID string `json:"winning_outcome_id" binding:"required"`
		Force            bool   `json:"force"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	winnerID, err := uuid.Parse(body.WinningOutcomeID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_OUTCOME_ID", "invalid winning_outcome_id format")
		return
	}

	results, err := h.resolutionSvc.Resolve(c.Request.Context(), id, winnerID, body.Force)
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		case errors.Is(err, domain.ErrMarketAlreadyResolved):
			respondError(c, http.StatusConflict, "ERR_ALREADY_RESOLVED", err.Error())
		case errors.Is(err, domain.ErrMarketNotClosable):
			respondError(c, http.StatusConflict, "ERR_NOT_CLOSABLE", "market has not reached its close time; pass force to override")
		case errors.Is(err, domain.ErrUnknownOutcome):
			respondError(c, http.StatusBadRequest, "ERR_UNKNOWN_OUTCOME", err.Error())
		default:
			// Settlement may be partially done; per-bet results carry details
			// and the retry sweep finishes the rest.
			respondError(c, http.StatusInternalServerError, "ERR_SETTLEMENT", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"market_id": id, "settlements": results})
}

// Cancel godoc
// POST /admin/markets/:id/cancel
func (h *MarketAdminHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	results, err := h.resolutionSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		case errors.Is(err, domain.ErrMarketAlreadyResolved):
			respondError(c, http.StatusConflict, "ERR_ALREADY_RESOLVED", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"market_id": id, "status": "cancelled", "refunds": results})
}

// RetrySettlement godoc
// POST /admin/markets/:id/retry-settlement
//
// Re-drives a resolved market's settlement: settles confirmed bets left by a
// crash and re-sends undisbursed payouts.  Safe to invoke repeatedly.
func (h *MarketAdminHandler) RetrySettlement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	results, err := h.resolutionSvc.ResumeSettlement(c.Request.Context(), id)
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		case errors.Is(err, domain.ErrMarketClosed):
			respondError(c, http.StatusConflict, "ERR_NOT_RESOLVED", "market is not resolved; nothing to settle")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_SETTLEMENT", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"market_id": id, "settlements": results})
}
