package handler

import (
	"net/http"
	"time"

	"github.com/evetabi/memeoracle/internal/config"
	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/evetabi/memeoracle/internal/service"
	"github.com/evetabi/memeoracle/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	ledger    *service.LedgerService
	scorecard *service.ScorecardService
	hub       *ws.Hub
	cfg       *config.Config
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	ledger *service.LedgerService,
	scorecard *service.ScorecardService,
	hub *ws.Hub,
	cfg *config.Config,
) *DashboardHandler {
	return &DashboardHandler{
		ledger:    ledger,
		scorecard: scorecard,
		hub:       hub,
		cfg:       cfg,
	}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats := h.ledger.Stats()

	// ── Open markets ─────────────────────────────────────────────────────────
	now := time.Now().UTC()
	open := make([]gin.H, 0, stats.OpenMarkets)
	for _, m := range h.ledger.Snapshots() {
		if !m.IsOpen() {
			continue
		}
		row := poolBreakdown(m)
		row["expired"] = m.IsExpired(now)
		open = append(open, row)
	}

	// ── Top agent ─────────────────────────────────────────────────────────────
	var top *domain.AgentStats
	if board := h.scorecard.Leaderboard(ctx, 1); len(board) > 0 {
		top = &board[0]
	}

	// ── WS connections ────────────────────────────────────────────────────────
	var wsConnections int
	if h.hub != nil {
		wsConnections = h.hub.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp":        now,
		"open_markets":     open,
		"resolved_markets": stats.ResolvedMarkets,
		"predictions":      stats.Stakes,
		"agents":           stats.Agents,
		"total_volume":     stats.TotalVolume,
		"top_agent":        top,
		"storage_driver":   h.cfg.Storage.Driver,
		"commentary":       h.cfg.Commentary.Enabled(),
		"ws_connections":   wsConnections,
	})
}

// poolBreakdown summarises a market's pools with side percentages and a
// risk indicator.
func poolBreakdown(m *domain.Market) gin.H {
	yesPct, noPct := poolPercents(m.Pools)
	return gin.H{
		"id":             m.ID,
		"symbol":         m.Subject,
		"question":       m.Question,
		"status":         m.Status,
		"expires_at":     m.ExpiresAt,
		"pool_yes":       m.Pools.Yes,
		"pool_no":        m.Pools.No,
		"total_pool":     m.TotalPool(),
		"yes_pct":        yesPct,
		"no_pct":         noPct,
		"predictions":    len(m.Stakes),
		"current_odds":   m.PayoutOddsView(),
		"risk_indicator": riskIndicator(yesPct, noPct),
	}
}

// poolPercents returns each side's share of the total pool, zero for an
// empty market.
func poolPercents(p domain.Pools) (yesPct, noPct decimal.Decimal) {
	total := p.Total()
	if total.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	yesPct = p.Yes.Div(total).Mul(hundred).RoundDown(2)
	noPct = hundred.Sub(yesPct)
	return
}

// riskIndicator returns GREEN/YELLOW/RED based on pool imbalance.
func riskIndicator(yesPct, noPct decimal.Decimal) string {
	dominant := yesPct
	if noPct.GreaterThan(yesPct) {
		dominant = noPct
	}
	switch {
	case dominant.GreaterThan(decimal.NewFromInt(85)):
		return "RED"
	case dominant.GreaterThan(decimal.NewFromInt(70)):
		return "YELLOW"
	default:
		return "GREEN"
	}
}
