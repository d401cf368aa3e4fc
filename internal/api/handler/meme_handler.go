package handler

import (
	"net/http"

	"github.com/evetabi/memeoracle/internal/service"
	"github.com/gin-gonic/gin"
)

// Service identity reported by /api/health.
const (
	SkillName    = "Meme-Coin-Oracle"
	SkillVersion = "1.0.0"
	SkillChain   = "Solana"
)

// MemeHandler serves the trending feed, per-coin analysis and the service
// health summary.
type MemeHandler struct {
	trending   *service.TrendingService
	commentary *service.CommentaryService
	ledger     *service.LedgerService
}

// NewMemeHandler creates a MemeHandler.
func NewMemeHandler(trending *service.TrendingService, commentary *service.CommentaryService, ledger *service.LedgerService) *MemeHandler {
	return &MemeHandler{trending: trending, commentary: commentary, ledger: ledger}
}

// Health godoc
// GET /api/health
func (h *MemeHandler) Health(c *gin.Context) {
	stats := h.ledger.Stats()
	respondSuccess(c, http.StatusOK, gin.H{
		"status":      "ok",
		"skill":       SkillName,
		"version":     SkillVersion,
		"chain":       SkillChain,
		"description": "Prediction markets and AI commentary for Solana meme coins",
		"stats": gin.H{
			"tracked_coins":    h.trending.TrackedCount(),
			"active_markets":   stats.OpenMarkets,
			"resolved_markets": stats.ResolvedMarkets,
			"predictions":      stats.Stakes,
			"agents":           stats.Agents,
			"total_volume":     stats.TotalVolume,
			"commentary":       h.commentary.Enabled(),
		},
	})
}

// Trending godoc
// GET /api/memes/trending
func (h *MemeHandler) Trending(c *gin.Context) {
	coins := h.trending.Trending()
	respondList(c, coins, len(coins))
}

// Analysis godoc
// GET /api/memes/:symbol/analysis
func (h *MemeHandler) Analysis(c *gin.Context) {
	out, err := h.commentary.AnalyzeCoin(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		respondServiceError(c, err, "could not analyse coin")
		return
	}
	respondSuccess(c, http.StatusOK, out)
}

// RugCheck godoc
// GET /api/memes/:symbol/rugcheck
func (h *MemeHandler) RugCheck(c *gin.Context) {
	out, err := h.commentary.RugCheck(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		respondServiceError(c, err, "could not run rug check")
		return
	}
	respondSuccess(c, http.StatusOK, out)
}
