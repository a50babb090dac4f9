package handler

import (
	"crypto/hmac"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wagerpool/parimutuel/internal/domain"
	"github.com/wagerpool/parimutuel/internal/service"
)

// PaymentHandler receives confirmation callbacks from the payment watcher.
//
// Delivery is at-least-once: the watcher retries until it gets a 2xx, so the
// handler must answer success for every outcome that requires no retry —
// including redelivery of a confirmation that already went through.
type PaymentHandler struct {
	betSvc        *service.BetService
	webhookSecret []byte
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(betSvc *service.BetService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{betSvc: betSvc, webhookSecret: []byte(webhookSecret)}
}

// Callback godoc
// POST /api/payments/callback
// Headers: X-Webhook-Secret: <shared secret>
// Body: {"bet_id":"uuid","payment_ref":"...","status":"completed"}
func (h *PaymentHandler) Callback(c *gin.Context) {
	secret := c.GetHeader("X-Webhook-Secret")
	if !hmac.Equal([]byte(secret), h.webhookSecret) {
		respondError(c, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "bad webhook secret")
		return
	}

	var body struct {
		BetID      string `json:"bet_id"      binding:"required"`
		PaymentRef string `json:"payment_ref" binding:"required"`
		Status     string `json:"status"      binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	betID, err := uuid.Parse(body.BetID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BET_ID", "invalid bet_id format")
		return
	}
	if body.Status != "completed" {
		// Non-final payment states carry no action; ack so the watcher stops
		// retrying.  The bet stays pending until completion or expiry.
		respondSuccess(c, http.StatusOK, gin.H{"bet_id": betID, "ignored": true})
		return
	}

	bet, err := h.betSvc.ConfirmBet(c.Request.Context(), betID, body.PaymentRef)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyConfirmed):
			// Redelivery; the first delivery already credited the pool.
			respondSuccess(c, http.StatusOK, bet)
		case errors.Is(err, domain.ErrBetNotFound):
			respondError(c, http.StatusNotFound, "ERR_BET_NOT_FOUND", "bet not found")
		case errors.Is(err, domain.ErrBetNotPending), errors.Is(err, domain.ErrMarketClosed):
			// Terminal bet or closed market: nothing to confirm, nothing to
			// retry.  Ack with the conflict spelled out for reconciliation.
			respondError(c, http.StatusConflict, "ERR_NOT_CONFIRMABLE", err.Error())
		default:
			// 5xx keeps the watcher retrying.
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not confirm bet")
		}
		return
	}
	respondSuccess(c, http.StatusOK, bet)
}
