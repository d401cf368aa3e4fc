package handler

import (
	"net/http"
	"strings"

	"github.com/evetabi/memeoracle/internal/service"
	"github.com/gin-gonic/gin"
)

// AgentAdminHandler serves /admin/agents endpoints.
type AgentAdminHandler struct {
	scorecard *service.ScorecardService
}

// NewAgentAdminHandler creates an AgentAdminHandler.
func NewAgentAdminHandler(scorecard *service.ScorecardService) *AgentAdminHandler {
	return &AgentAdminHandler{scorecard: scorecard}
}

// List godoc
// GET /admin/agents?page=1&limit=50
// The full ranked leaderboard, paged.
func (h *AgentAdminHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)
	board := h.scorecard.Leaderboard(c.Request.Context(), 0)
	from, to := pageOf(len(board), page, limit)
	respondList(c, board[from:to], len(board), page, limit)
}

// Detail godoc
// GET /admin/agents/:agentId
// Stats plus the raw stake history, newest last.
func (h *AgentAdminHandler) Detail(c *gin.Context) {
	id := strings.TrimSpace(c.Param("agentId"))
	ctx := c.Request.Context()

	history := h.scorecard.History(ctx, id)
	if len(history) == 0 {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "agent has no predictions")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"stats":   h.scorecard.GetStats(ctx, id),
		"history": history,
	})
}
