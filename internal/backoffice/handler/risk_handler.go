package handler

import (
	"net/http"
	"sort"

	"github.com/evetabi/memeoracle/internal/service"
	"github.com/gin-gonic/gin"
)

// RiskHandler serves /admin/risk endpoints.
type RiskHandler struct {
	ledger *service.LedgerService
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(ledger *service.LedgerService) *RiskHandler {
	return &RiskHandler{ledger: ledger}
}

// Live godoc
// GET /admin/risk/live
// Lists open markets by pool imbalance, most lopsided first.
func (h *RiskHandler) Live(c *gin.Context) {
	rows := make([]gin.H, 0)
	for _, m := range h.ledger.Snapshots() {
		if m.IsOpen() {
			rows = append(rows, poolBreakdown(m))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return riskRank(rows[i]["risk_indicator"]) > riskRank(rows[j]["risk_indicator"])
	})

	alerts := 0
	for _, r := range rows {
		if r["risk_indicator"] == "RED" {
			alerts++
		}
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"markets": rows,
		"alerts":  alerts,
	})
}

func riskRank(v interface{}) int {
	switch v {
	case "RED":
		return 2
	case "YELLOW":
		return 1
	default:
		return 0
	}
}
