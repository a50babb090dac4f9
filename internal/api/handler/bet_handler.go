package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wagerpool/parimutuel/internal/api/middleware"
	"github.com/wagerpool/parimutuel/internal/domain"
	"github.com/wagerpool/parimutuel/internal/service"
)

// BetHandler serves bet placement and bet history endpoints.
type BetHandler struct {
	betSvc    *service.BetService
	marketSvc *service.MarketService
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(betSvc *service.BetService, marketSvc *service.MarketService) *BetHandler {
	return &BetHandler{betSvc: betSvc, marketSvc: marketSvc}
}

// PlaceBet godoc
// POST /api/bets [JWT]
// Body: {"market_id":"uuid","outcome_id":"uuid","stake":500}
//
// Older clients may send {"position":"yes"} instead of outcome_id for binary
// markets; the position string is translated to the matching outcome here at
// the boundary, so everything below the handler deals in outcome ids only.
func (h *BetHandler) PlaceBet(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		MarketID  string `json:"market_id" binding:"required"`
		OutcomeID string `json:"outcome_id"`
		Position  string `json:"position"`
		Stake     int64  `json:"stake" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	marketID, err := uuid.Parse(body.MarketID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid market_id format")
		return
	}
	if body.Stake <= 0 {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_STAKE", "stake must be a positive integer amount")
		return
	}

	var outcomeID uuid.UUID
	switch {
	case body.OutcomeID != "":
		outcomeID, err = uuid.Parse(body.OutcomeID)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_OUTCOME_ID", "invalid outcome_id format")
			return
		}
	case body.Position != "":
		market, mErr := h.marketSvc.GetMarket(c.Request.Context(), marketID)
		if mErr != nil {
			if domain.IsNotFound(mErr) {
				respondError(c, http.StatusNotFound, "ERR_MARKET_NOT_FOUND", "market not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not place bet")
			return
		}
		outcome := market.OutcomeByPosition(body.Position)
		if outcome == nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_POSITION",
				"position is only valid for binary markets and must be yes/no or up/down")
			return
		}
		outcomeID = outcome.ID
	default:
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "outcome_id or position is required")
		return
	}

	bet, err := h.betSvc.PlaceBet(c.Request.Context(), domain.PlaceBetRequest{
		UserID:    userID,
		MarketID:  marketID,
		OutcomeID: outcomeID,
		Stake:     body.Stake,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidStake):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_STAKE", err.Error())
		case errors.Is(err, domain.ErrUnknownOutcome):
			respondError(c, http.StatusBadRequest, "ERR_UNKNOWN_OUTCOME", err.Error())
		case errors.Is(err, domain.ErrMarketClosed):
			respondError(c, http.StatusConflict, "ERR_MARKET_CLOSED", err.Error())
		case errors.Is(err, domain.ErrMarketNotFound):
			respondError(c, http.StatusNotFound, "ERR_MARKET_NOT_FOUND", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not place bet")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, bet)
}

// GetMyBets godoc
// GET /api/bets/my?page=1&limit=20 [JWT]
func (h *BetHandler) GetMyBets(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	bets, err := h.betSvc.GetMyBets(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bets")
		return
	}
	respondList(c, bets, len(bets), page, limit)
}

// GetBetByID godoc
// GET /api/bets/:id [JWT]
func (h *BetHandler) GetBetByID(c *gin.Context) {
	userID := middleware.GetUserID(c)

	betID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BET_ID", "invalid bet id")
		return
	}

	bet, err := h.betSvc.GetBetByID(c.Request.Context(), betID, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "access denied")
		case errors.Is(err, domain.ErrBetNotFound):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "bet not found")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bet")
		}
		return
	}
	respondSuccess(c, http.StatusOK, bet)
}
