package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wagerpool/parimutuel/internal/domain"
	"github.com/wagerpool/parimutuel/internal/service"
)

// MarketHandler serves the public read side of markets: listings, detail,
// live odds and history.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// ListMarkets godoc
// GET /api/markets?status=active&page=1&limit=20
func (h *MarketHandler) ListMarkets(c *gin.Context) {
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	status := c.Query("status")
	switch status {
	case "", string(domain.StatusActive), string(domain.StatusResolved), string(domain.StatusCancelled):
	default:
		respondError(c, http.StatusBadRequest, "ERR_INVALID_STATUS", "unknown status filter")
		return
	}

	markets, total, err := h.marketSvc.ListMarkets(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list markets")
		return
	}
	respondList(c, markets, total, page, limit)
}

// GetActive godoc
// GET /api/markets/active
func (h *MarketHandler) GetActive(c *gin.Context) {
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	markets, total, err := h.marketSvc.ListMarkets(c.Request.Context(), limit, offset, string(domain.StatusActive))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list markets")
		return
	}
	respondList(c, markets, total, page, limit)
}

// GetHistory godoc
// GET /api/markets/history?page=1&limit=20
func (h *MarketHandler) GetHistory(c *gin.Context) {
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	markets, err := h.marketSvc.GetMarketHistory(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch history")
		return
	}
	respondList(c, markets, len(markets), page, limit)
}

// GetByID godoc
// GET /api/markets/:id
func (h *MarketHandler) GetByID(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid market id")
		return
	}

	market, err := h.marketSvc.GetMarket(c.Request.Context(), marketID)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_MARKET_NOT_FOUND", "market not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch market")
		return
	}
	respondSuccess(c, http.StatusOK, market.ToSummary())
}

// GetOdds godoc
// GET /api/markets/:id/odds
func (h *MarketHandler) GetOdds(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid market id")
		return
	}

	odds, err := h.marketSvc.GetOdds(c.Request.Context(), marketID)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_MARKET_NOT_FOUND", "market not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not compute odds")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"market_id": marketID, "odds": odds})
}
