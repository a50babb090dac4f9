// Package payment holds the collaborator interfaces to the external payment
// system.  The engine only ever sees two things: a Sender it pushes payouts
// through, and the confirmation callbacks the payment watcher delivers to the
// API webhook (at-least-once).
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Sender disburses funds to a user.  Implementations are fail-fast: a single
// bounded call, no internal retries.  MarketResolver retries failed
// disbursements through the settlement sweep, passing the same idempotency
// key so the processor can de-duplicate a send that succeeded but whose
// reference was lost.
type Sender interface {
	Send(ctx context.Context, userID string, amount int64, idempotencyKey string) (paymentRef string, err error)
}

// ──────────────────────────────────────────────────────────────────────────────
// HTTPSender
// ──────────────────────────────────────────────────────────────────────────────

// HTTPSender pushes payouts to the payment processor's REST endpoint.
type HTTPSender struct {
	client *http.Client
	url    string
}

// NewHTTPSender builds an HTTPSender with the given endpoint and timeout
// already baked into the client.
func NewHTTPSender(url string, client *http.Client) *HTTPSender {
	return &HTTPSender{client: client, url: url}
}

type sendRequest struct {
	UserID         string `json:"user_id"`
	Amount         int64  `json:"amount"` // smallest currency unit
	IdempotencyKey string `json:"idempotency_key"`
}

type sendResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Send posts a disbursement request and returns the processor's payment
// reference.  Any non-2xx status or transport failure is returned to the
// caller; nothing is retried here.
func (s *HTTPSender) Send(ctx context.Context, userID string, amount int64, idempotencyKey string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("payment.Send: non-positive amount %d", amount)
	}

	body, err := json.Marshal(sendRequest{
		UserID:         userID,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return "", fmt.Errorf("payment.Send: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("payment.Send: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment.Send: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("payment.Send: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("payment.Send: processor returned %d: %s", resp.StatusCode, string(data))
	}

	var out sendResponse
	if err = json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("payment.Send: decode response: %w", err)
	}
	if out.Reference == "" {
		return "", fmt.Errorf("payment.Send: processor response missing reference (status=%q)", out.Status)
	}
	return out.Reference, nil
}
