package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wagerpool/parimutuel/internal/api/handler"
	"github.com/wagerpool/parimutuel/internal/api/middleware"
	"github.com/wagerpool/parimutuel/internal/config"
	"github.com/wagerpool/parimutuel/internal/service"
	"github.com/wagerpool/parimutuel/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	MarketSvc *service.MarketService
	BetSvc    *service.BetService
	Hub       *ws.Hub
	Cfg       *config.Config
}

// SetupRouter creates and configures the public Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(deps.Cfg))

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if deps.Hub != nil {
			body["ws_clients"] = deps.Hub.ConnectedCount()
		}
		c.JSON(http.StatusOK, body)
	})

	marketH := handler.NewMarketHandler(deps.MarketSvc)
	betH := handler.NewBetHandler(deps.BetSvc, deps.MarketSvc)
	paymentH := handler.NewPaymentHandler(deps.BetSvc, deps.Cfg.Payment.WebhookSecret)

	jwtMW := middleware.JWTMiddleware([]byte(deps.Cfg.JWT.AccessSecret))
	betRL := middleware.RateLimitMiddleware(30)     // 30 req/s per IP for bet endpoints
	webhookRL := middleware.RateLimitMiddleware(50) // payment watcher bursts on redelivery

	api := r.Group("/api")
	{
		// ── Markets (public) ─────────────────────────────────────────────────
		markets := api.Group("/markets")
		{
			markets.GET("/active", marketH.GetActive)
			markets.GET("/history", marketH.GetHistory)
			markets.GET("", marketH.ListMarkets)
			markets.GET("/:id", marketH.GetByID)
			markets.GET("/:id/odds", marketH.GetOdds)
		}

		// ── Payment watcher callback (shared-secret auth, no JWT) ────────────
		payments := api.Group("/payments")
		payments.Use(webhookRL)
		{
			payments.POST("/callback", paymentH.Callback)
		}

		// ── Authenticated routes ─────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			bets := authed.Group("/bets")
			bets.Use(betRL)
			{
				bets.POST("", betH.PlaceBet)
				bets.GET("/my", betH.GetMyBets)
				bets.GET("/:id", betH.GetBetByID)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// corsMiddleware returns a gin middleware that sets CORS headers.  In
// development all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := map[string]bool{
				"https://wagerpool.io":     true,
				"https://www.wagerpool.io": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-Webhook-Secret")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
