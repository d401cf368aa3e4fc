package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultScorecardFeeRate is the flat house edge deducted from winning stakes
// in the profit estimate.
var DefaultScorecardFeeRate = decimal.NewFromFloat(0.10)

// AgentStats is an agent's accuracy report.
//
// EstimatedProfit is a flat-rate approximation used for ranking: a correct
// stake earns amount × (1 - feeRate), an incorrect one loses its amount.
// It is not the exact proportional payout of ComputePayouts.
type AgentStats struct {
	AgentID             string `json:"agent_id"`
	TotalPredictions    int    `json:"total_predictions"`
	ResolvedPredictions int    `json:"resolved_predictions"`
	CorrectPredictions  int    `json:"correct_predictions"`
	Accuracy            string `json:"accuracy"`
	EstimatedProfit     string `json:"estimated_profit"`

	profit decimal.Decimal
}

// Profit returns the unformatted profit estimate.
func (a AgentStats) Profit() decimal.Decimal { return a.profit }

// accuracyRatio is correct/resolved, zero when nothing resolved.
func (a AgentStats) accuracyRatio() decimal.Decimal {
	if a.ResolvedPredictions == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(a.CorrectPredictions)).
		Div(decimal.NewFromInt(int64(a.ResolvedPredictions)))
}

// MarketLookup resolves a market id to its current snapshot.
type MarketLookup func(marketID string) (*Market, bool)

// ScoreAgent replays an agent's stake history against the markets returned by
// lookup. Stakes on markets that are unknown or still open count toward
// TotalPredictions only.
func ScoreAgent(agentID string, history []AgentStake, lookup MarketLookup, feeRate decimal.Decimal) AgentStats {
	winFactor := decimal.NewFromInt(1).Sub(feeRate)
	stats := AgentStats{
		AgentID:          agentID,
		TotalPredictions: len(history),
		profit:           decimal.Zero,
	}

	for _, h := range history {
		m, ok := lookup(h.MarketID)
		if !ok || !m.IsResolved() || m.Result == nil {
			continue
		}
		stats.ResolvedPredictions++
		if h.Position == m.Result.Outcome {
			stats.CorrectPredictions++
			stats.profit = stats.profit.Add(h.Amount.Mul(winFactor))
		} else {
			stats.profit = stats.profit.Sub(h.Amount)
		}
	}

	stats.Accuracy = NotApplicable
	if stats.ResolvedPredictions > 0 {
		stats.Accuracy = stats.accuracyRatio().Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
	}
	stats.EstimatedProfit = stats.profit.StringFixed(2)
	return stats
}

// RankAgents orders stats for a leaderboard: estimated profit descending,
// then accuracy descending, then agent id ascending.
func RankAgents(stats []AgentStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if c := a.profit.Cmp(b.profit); c != 0 {
			return c > 0
		}
		if c := a.accuracyRatio().Cmp(b.accuracyRatio()); c != 0 {
			return c > 0
		}
		return a.AgentID < b.AgentID
	})
}
