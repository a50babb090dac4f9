// Package api_test runs HTTP-level smoke tests using net/http/httptest.
// These tests do NOT require a PostgreSQL database — they verify:
//   - Gin router routing and middleware wiring
//   - Request validation error responses (400)
//   - JWT auth middleware (401 without token, 401 with bad token)
//   - Webhook shared-secret gate on the payment callback
//   - Response format consistency (success/error envelope)
//   - CORS preflight handling
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wagerpool/parimutuel/internal/api"
	"github.com/wagerpool/parimutuel/internal/config"
)

const testWebhookSecret = "test-webhook-secret-abcdefghijklmnop"

// ── Test helpers ──────────────────────────────────────────────────────────────

func testCfg() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Env:  "development",
			Port: "8080",
		},
		JWT: config.JWTConfig{
			AccessSecret: "test-access-secret-abcdefghijklmnop",
		},
		Payment: config.PaymentConfig{
			SenderURL:     "http://localhost:9090/v1/send",
			SendTimeout:   5 * time.Second,
			WebhookSecret: testWebhookSecret,
		},
		Engine: config.EngineConfig{
			MinStake:   100,
			PendingTTL: 30 * time.Minute,
		},
	}
}

// buildTestRouter creates a Gin engine with nil services: routes that reach a
// service are not exercised here, only routing, validation and auth layers.
func buildTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return api.SetupRouter(api.RouterDeps{
		MarketSvc: nil,
		BetSvc:    nil,
		Hub:       nil,
		Cfg:       testCfg(),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	buf := bytes.NewBufferString(body)
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("response is not valid JSON: %v — body: %s", err, rr.Body.String())
	}
	return m
}

// ── /health ───────────────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rr.Code)
	}
}

// ── JWT auth middleware ───────────────────────────────────────────────────────

func TestPlaceBet_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"market_id":"11111111-1111-1111-1111-111111111111","outcome_id":"22222222-2222-2222-2222-222222222222","stake":500}`
	rr := do(t, h, http.MethodPost, "/api/bets", payload, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/bets without token = %d, want 401", rr.Code)
	}
}

func TestMyBets_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/bets/my", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/bets/my without token = %d, want 401", rr.Code)
	}
}

func TestPlaceBet_InvalidToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"market_id":"11111111-1111-1111-1111-111111111111","outcome_id":"22222222-2222-2222-2222-222222222222","stake":500}`
	// Well-formed JWT shape but signed with the wrong secret.
	fakeJWT := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9" +
		".eyJzdWIiOiIxMjM0NTY3ODkwIiwicm9sZSI6InVzZXIiLCJ0b2tlbl90eXBlIjoiYWNjZXNzIn0" +
		".BADSIG"
	rr := do(t, h, http.MethodPost, "/api/bets", payload, map[string]string{
		"Authorization": "Bearer " + fakeJWT,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/bets with invalid JWT = %d, want 401", rr.Code)
	}
}

// ── Payment callback — shared-secret gate ─────────────────────────────────────

func TestPaymentCallback_WrongSecret_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"bet_id":"11111111-1111-1111-1111-111111111111","payment_ref":"p-1","status":"completed"}`
	rr := do(t, h, http.MethodPost, "/api/payments/callback", payload, map[string]string{
		"X-Webhook-Secret": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("callback with wrong secret = %d, want 401", rr.Code)
	}
}

func TestPaymentCallback_MissingFields_Returns400(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/payments/callback", `{}`, map[string]string{
		"X-Webhook-Secret": testWebhookSecret,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("callback with empty body = %d, want 400", rr.Code)
	}
}

func TestPaymentCallback_NonFinalStatus_AckedWithoutAction(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"bet_id":"11111111-1111-1111-1111-111111111111","payment_ref":"p-1","status":"processing"}`
	rr := do(t, h, http.MethodPost, "/api/payments/callback", payload, map[string]string{
		"X-Webhook-Secret": testWebhookSecret,
	})
	if rr.Code != http.StatusOK {
		t.Errorf("callback with non-final status = %d, want 200 ack", rr.Code)
	}
	body := decodeBody(t, rr)
	data, _ := body["data"].(map[string]interface{})
	if data == nil || data["ignored"] != true {
		t.Errorf("non-final status should be acked as ignored, got %v", body)
	}
}

// ── Markets public endpoints ──────────────────────────────────────────────────

func TestMarketsActive_IsPublic(t *testing.T) {
	h := buildTestRouter(t)
	// No token: should NOT be 401.  May 500 against the nil service.
	rr := do(t, h, http.MethodGet, "/api/markets/active", "", nil)
	if rr.Code == http.StatusUnauthorized {
		t.Error("GET /api/markets/active should be a public endpoint (no 401)")
	}
}

func TestMarketsHistory_IsPublic(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/markets/history", "", nil)
	if rr.Code == http.StatusUnauthorized {
		t.Error("GET /api/markets/history should be public (no 401)")
	}
}

func TestMarketDetail_BadID_Returns400(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/markets/not-a-uuid", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("GET /api/markets/not-a-uuid = %d, want 400", rr.Code)
	}
}

// ── Error envelope format ─────────────────────────────────────────────────────

func TestErrorEnvelope_HasRequiredFields(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/markets/not-a-uuid", "", nil)
	body := decodeBody(t, rr)

	for _, field := range []string{"success", "error", "code"} {
		if _, ok := body[field]; !ok {
			t.Errorf("error envelope missing field %q, got: %v", field, body)
		}
	}
	if body["success"] != false {
		t.Errorf("error envelope.success = %v, want false", body["success"])
	}
}

// ── CORS headers ──────────────────────────────────────────────────────────────

func TestCORSOptionsRequest(t *testing.T) {
	h := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/bets", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent && rr.Code != http.StatusOK {
		t.Errorf("OPTIONS /api/bets = %d, want 204 or 200", rr.Code)
	}
	allow := rr.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(allow, "POST") {
		t.Errorf("Access-Control-Allow-Methods missing POST, got %q", allow)
	}
}

func TestCORSAllowOrigin_Dev(t *testing.T) {
	h := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Dev CORS origin = %q, want *", origin)
	}
}
