package handler

import (
	"math"
	"net/http"
	"time"

	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/evetabi/memeoracle/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MarketHandler serves market creation, staking, resolution and query
// endpoints.
type MarketHandler struct {
	ledger     *service.LedgerService
	commentary *service.CommentaryService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(ledger *service.LedgerService, commentary *service.CommentaryService) *MarketHandler {
	return &MarketHandler{ledger: ledger, commentary: commentary}
}

// maxExpiresInMs is the largest expires_in that still fits a time.Duration.
const maxExpiresInMs = math.MaxInt64 / int64(time.Millisecond)

// Create godoc
// POST /api/markets (alias: POST /api/markets/create)
// Body: {"symbol":"WOJAK","question":"...","options":["YES","NO"],"expires_in":3600000}
// expires_in is in milliseconds; 0 or absent uses the configured default.
// expiresIn is accepted as well.
func (h *MarketHandler) Create(c *gin.Context) {
	var body struct {
		Symbol         string   `json:"symbol"`
		Question       string   `json:"question"`
		Options        []string `json:"options"`
		ExpiresIn      int64    `json:"expires_in"`
		ExpiresInCamel int64    `json:"expiresIn"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	expiresIn := body.ExpiresIn
	if expiresIn == 0 {
		expiresIn = body.ExpiresInCamel
	}
	if expiresIn > maxExpiresInMs {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "expires_in is too large")
		return
	}

	m, err := h.ledger.CreateMarket(c.Request.Context(), domain.CreateMarketRequest{
		Subject:   body.Symbol,
		Question:  body.Question,
		Options:   body.Options,
		ExpiresIn: time.Duration(expiresIn) * time.Millisecond,
	})
	if err != nil {
		respondServiceError(c, err, "could not create market")
		return
	}
	respondSuccess(c, http.StatusCreated, m)
}

// List godoc
// GET /api/markets?status=open|resolved|all
func (h *MarketHandler) List(c *gin.Context) {
	filter, err := domain.ParseStatusFilter(c.Query("status"))
	if err != nil {
		respondServiceError(c, err, "could not list markets")
		return
	}
	markets := h.ledger.ListMarkets(c.Request.Context(), filter)
	respondList(c, markets, len(markets))
}

// GetByID godoc
// GET /api/markets/:id
func (h *MarketHandler) GetByID(c *gin.Context) {
	detail, err := h.ledger.GetMarket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "could not fetch market")
		return
	}
	respondSuccess(c, http.StatusOK, detail)
}

// Predict godoc
// POST /api/markets/:id/predict
// Body: {"agent_id":"meme-hunter","position":"yes","amount":"200","confidence":75,"reasoning":"..."}
// amount may be a JSON number or a decimal string. agentId is accepted as well.
func (h *MarketHandler) Predict(c *gin.Context) {
	var body struct {
		AgentID      string           `json:"agent_id"`
		AgentIDCamel string           `json:"agentId"`
		Position     string           `json:"position"`
		Amount       *decimal.Decimal `json:"amount"`
		Confidence   *int             `json:"confidence"`
		Reasoning    string           `json:"reasoning"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	if body.AgentID == "" {
		body.AgentID = body.AgentIDCamel
	}

	receipt, err := h.ledger.PlaceStake(c.Request.Context(), domain.PlaceStakeRequest{
		MarketID:   c.Param("id"),
		AgentID:    body.AgentID,
		Position:   body.Position,
		Amount:     body.Amount,
		Confidence: body.Confidence,
		Reasoning:  body.Reasoning,
	})
	if err != nil {
		respondServiceError(c, err, "could not place prediction")
		return
	}
	respondSuccess(c, http.StatusCreated, receipt)
}

// Resolve godoc
// POST /api/markets/:id/resolve
// Body: {"outcome":"yes","price_at_resolution":"0.0031"}
// priceAtResolution is accepted as well.
func (h *MarketHandler) Resolve(c *gin.Context) {
	var body struct {
		Outcome                string           `json:"outcome"`
		PriceAtResolution      *decimal.Decimal `json:"price_at_resolution"`
		PriceAtResolutionCamel *decimal.Decimal `json:"priceAtResolution"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	if body.PriceAtResolution == nil {
		body.PriceAtResolution = body.PriceAtResolutionCamel
	}

	settlement, err := h.ledger.ResolveMarket(c.Request.Context(), domain.ResolveRequest{
		MarketID:          c.Param("id"),
		Outcome:           body.Outcome,
		PriceAtResolution: body.PriceAtResolution,
	})
	if err != nil {
		respondServiceError(c, err, "could not resolve market")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market":     settlement.Market,
		"winners":    settlement.Payouts,
		"total_paid": domain.TotalPaid(settlement.Payouts),
	})
}

// Commentary godoc
// GET /api/markets/:id/commentary
func (h *MarketHandler) Commentary(c *gin.Context) {
	out, err := h.commentary.MarketCommentary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "could not generate commentary")
		return
	}
	respondSuccess(c, http.StatusOK, out)
}
