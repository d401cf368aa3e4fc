package handler

import (
	"net/http"

	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/evetabi/memeoracle/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MarketAdminHandler serves /admin/markets endpoints.
type MarketAdminHandler struct {
	ledger *service.LedgerService
}

// NewMarketAdminHandler creates a MarketAdminHandler.
func NewMarketAdminHandler(ledger *service.LedgerService) *MarketAdminHandler {
	return &MarketAdminHandler{ledger: ledger}
}

// List godoc
// GET /admin/markets?status=all&page=1&limit=50
func (h *MarketAdminHandler) List(c *gin.Context) {
	filter, err := domain.ParseStatusFilter(c.DefaultQuery("status", string(domain.FilterAll)))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	page, limit := adminPagination(c)

	markets := h.ledger.ListMarkets(c.Request.Context(), filter)
	from, to := pageOf(len(markets), page, limit)
	respondList(c, markets[from:to], len(markets), page, limit)
}

// Detail godoc
// GET /admin/markets/:id
// Returns the market with every stake split by side, plus the payout
// schedule once resolved.
func (h *MarketAdminHandler) Detail(c *gin.Context) {
	m, ok := h.ledger.Snapshot(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", domain.ErrMarketNotFound.Error())
		return
	}

	yes := make([]domain.Stake, 0)
	no := make([]domain.Stake, 0)
	for _, st := range m.Stakes {
		if st.Position == domain.SideYes {
			yes = append(yes, st)
		} else {
			no = append(no, st)
		}
	}

	payouts := domain.ComputePayouts(m)
	if payouts == nil {
		payouts = []domain.Payout{}
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market":      m.ToDetail(),
		"stakes_yes":  yes,
		"stakes_no":   no,
		"entry_odds":  m.EntryOddsView(),
		"breakdown":   poolBreakdown(m),
		"payouts":     payouts,
		"total_paid":  domain.TotalPaid(payouts),
		"unallocated": unallocated(m, payouts),
	})
}

// Resolve godoc
// POST /admin/markets/:id/resolve
// Body: {"outcome":"no","price_at_resolution":"0.0009"}
func (h *MarketAdminHandler) Resolve(c *gin.Context) {
	var body struct {
		Outcome           string           `json:"outcome" binding:"required"`
		PriceAtResolution *decimal.Decimal `json:"price_at_resolution"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	settlement, err := h.ledger.ResolveMarket(c.Request.Context(), domain.ResolveRequest{
		MarketID:          c.Param("id"),
		Outcome:           body.Outcome,
		PriceAtResolution: body.PriceAtResolution,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market_id":  settlement.Market.ID,
		"outcome":    settlement.Market.Result.Outcome,
		"winners":    settlement.Payouts,
		"total_paid": domain.TotalPaid(settlement.Payouts),
	})
}

// unallocated is the part of the combined pool not paid out: rounding dust,
// or the whole pool when nobody backed the winning side. Zero while open.
func unallocated(m *domain.Market, payouts []domain.Payout) decimal.Decimal {
	if !m.IsResolved() {
		return decimal.Zero
	}
	return m.TotalPool().Sub(domain.TotalPaid(payouts))
}
