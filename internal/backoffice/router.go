// Package backoffice hosts the operator-facing admin API.  It runs as a
// separate Gin engine on its own port, behind an IP allowlist and a JWT role
// check, so market resolution and finance views are never reachable through
// the public surface.
package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wagerpool/parimutuel/internal/api/middleware"
	"github.com/wagerpool/parimutuel/internal/backoffice/handler"
	"github.com/wagerpool/parimutuel/internal/config"
	"github.com/wagerpool/parimutuel/internal/repository"
	"github.com/wagerpool/parimutuel/internal/service"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	MarketSvc     *service.MarketService
	ResolutionSvc *service.ResolutionService
	MarketRepo    *repository.MarketRepository
	BetRepo       *repository.BetRepository
	Cfg           *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	marketH := handler.NewMarketAdminHandler(deps.MarketSvc, deps.ResolutionSvc, deps.BetRepo)
	financeH := handler.NewFinanceHandler(deps.MarketRepo, deps.BetRepo)

	admin := r.Group("/admin")
	admin.Use(middleware.JWTMiddleware([]byte(deps.Cfg.JWT.AccessSecret)))
	admin.Use(middleware.AdminMiddleware())
	{
		m := admin.Group("/markets")
		{
			m.GET("", marketH.List)
			m.POST("", marketH.Create)
			m.GET("/:id", marketH.Detail)
			m.POST("/:id/resolve", marketH.Resolve)
			m.POST("/:id/cancel", marketH.Cancel)
			m.POST("/:id/retry-settlement", marketH.RetrySettlement)
		}

		fin := admin.Group("/finance")
		{
			fin.GET("/report", financeH.Report)
			fin.GET("/unpaid-payouts", financeH.UnpaidPayouts)
		}
	}

	return r
}

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}
