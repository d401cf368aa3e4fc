package backoffice

import (
	"net/http"
	"strings"

	"github.com/evetabi/memeoracle/internal/backoffice/handler"
	"github.com/evetabi/memeoracle/internal/config"
	"github.com/evetabi/memeoracle/internal/service"
	"github.com/evetabi/memeoracle/internal/ws"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	Ledger    *service.LedgerService
	Scorecard *service.ScorecardService
	Hub       *ws.Hub
	Cfg       *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine served on
// BACKOFFICE_PORT alongside the public API.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.Ledger, deps.Scorecard, deps.Hub, deps.Cfg)
	marketH := handler.NewMarketAdminHandler(deps.Ledger)
	agentH := handler.NewAgentAdminHandler(deps.Scorecard)
	riskH := handler.NewRiskHandler(deps.Ledger)

	admin := r.Group("/admin")
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Markets
		m := admin.Group("/markets")
		{
			m.GET("", marketH.List)
			m.GET("/:id", marketH.Detail)
			m.POST("/:id/resolve", marketH.Resolve)
		}

		// Agents
		a := admin.Group("/agents")
		{
			a.GET("", agentH.List)
			a.GET("/:agentId", agentH.Detail)
		}

		// Risk
		admin.GET("/risk/live", riskH.Live)
	}

	// Profiling, behind the same IP allow-list.
	pprof.Register(r, "/admin/debug/pprof")

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

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
		clientIP := c.ClientIP()
		if !allowed[clientIP] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}
