package api

import (
	"net/http"

	"github.com/evetabi/memeoracle/internal/api/handler"
	"github.com/evetabi/memeoracle/internal/api/middleware"
	"github.com/evetabi/memeoracle/internal/config"
	"github.com/evetabi/memeoracle/internal/service"
	"github.com/evetabi/memeoracle/internal/ws"
	"github.com/gin-gonic/gin"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Ledger     *service.LedgerService
	Scorecard  *service.ScorecardService
	Commentary *service.CommentaryService
	Trending   *service.TrendingService
	Hub        *ws.Hub
	Cfg        *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	marketH := handler.NewMarketHandler(deps.Ledger, deps.Commentary)
	agentH := handler.NewAgentHandler(deps.Scorecard, deps.Cfg.Scorecard.LeaderboardSize)
	memeH := handler.NewMemeHandler(deps.Trending, deps.Commentary, deps.Ledger)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	stakeRL := middleware.RateLimitMiddleware(deps.Cfg.RateLimit.PerSecond, deps.Cfg.RateLimit.Burst)

	api := r.Group("/api")
	{
		api.GET("/health", memeH.Health)

		// ── Memes ─────────────────────────────────────────────────────────────
		memes := api.Group("/memes")
		{
			memes.GET("/trending", memeH.Trending)
			memes.GET("/:symbol/analysis", memeH.Analysis)
			memes.GET("/:symbol/rugcheck", memeH.RugCheck)
		}

		// ── Markets ───────────────────────────────────────────────────────────
		markets := api.Group("/markets")
		{
			markets.POST("", marketH.Create)
			markets.POST("/create", marketH.Create)
			markets.GET("", marketH.List)
			markets.GET("/:id", marketH.GetByID)
			markets.POST("/:id/predict", stakeRL, marketH.Predict)
			markets.POST("/:id/resolve", marketH.Resolve)
			markets.GET("/:id/commentary", marketH.Commentary)
		}

		// ── Agents ────────────────────────────────────────────────────────────
		api.GET("/agents/:agentId/stats", agentH.Stats)
		api.GET("/leaderboard", agentH.Leaderboard)
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	// ?market=<id> restricts the feed to one market.
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// Outside production all origins are allowed; in production only the
// configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
