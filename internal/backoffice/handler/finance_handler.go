package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wagerpool/parimutuel/internal/repository"
)

// FinanceHandler serves /admin/finance endpoints: the house ledger view of
// fees and truncation residue.
type FinanceHandler struct {
	marketRepo *repository.MarketRepository
	betRepo    *repository.BetRepository
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(marketRepo *repository.MarketRepository, betRepo *repository.BetRepository) *FinanceHandler {
	return &FinanceHandler{marketRepo: marketRepo, betRepo: betRepo}
}

// Report godoc
// GET /admin/finance/report?from=2026-08-01&to=2026-08-31
func (h *FinanceHandler) Report(c *gin.Context) {
	ctx := c.Request.Context()

	fromStr := c.Query("from")
	toStr := c.Query("to")

	var from, to time.Time
	var err error
	if fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DATE", "from must be YYYY-MM-DD")
			return
		}
	} else {
		from = time.Now().UTC().AddDate(0, -1, 0).Truncate(24 * time.Hour) // default: last 30 days
	}
	if toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DATE", "to must be YYYY-MM-DD")
			return
		}
		to = to.Add(24 * time.Hour) // inclusive
	} else {
		to = time.Now().UTC()
	}

	report, err := h.marketRepo.GetFinanceReport(ctx, from, to)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

// UnpaidPayouts godoc
// GET /admin/finance/unpaid-payouts?limit=50
//
// Lists won bets whose payout has not reached the payment processor, so
// operators can see what the retry sweep is still working through.
func (h *FinanceHandler) UnpaidPayouts(c *gin.Context) {
	_, limit := adminPagination(c)

	bets, err := h.betRepo.GetUnpaidWon(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, bets, len(bets), 1, limit)
}
