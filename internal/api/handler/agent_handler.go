package handler

import (
	"net/http"
	"strconv"

	"github.com/evetabi/memeoracle/internal/service"
	"github.com/gin-gonic/gin"
)

// AgentHandler serves per-agent scorecards and the leaderboard.
type AgentHandler struct {
	scorecard   *service.ScorecardService
	defaultSize int
}

// NewAgentHandler creates an AgentHandler. defaultSize is the leaderboard
// length used when the request does not pass ?limit=.
func NewAgentHandler(scorecard *service.ScorecardService, defaultSize int) *AgentHandler {
	if defaultSize <= 0 {
		defaultSize = 20
	}
	return &AgentHandler{scorecard: scorecard, defaultSize: defaultSize}
}

// Stats godoc
// GET /api/agents/:agentId/stats
// Unknown agents get zeroed stats, never 404.
func (h *AgentHandler) Stats(c *gin.Context) {
	respondSuccess(c, http.StatusOK, h.scorecard.GetStats(c.Request.Context(), c.Param("agentId")))
}

// Leaderboard godoc
// GET /api/leaderboard?limit=20
func (h *AgentHandler) Leaderboard(c *gin.Context) {
	limit := h.defaultSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "limit must be a positive integer")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}
	board := h.scorecard.Leaderboard(c.Request.Context(), limit)
	respondList(c, board, len(board))
}
