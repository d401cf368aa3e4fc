package service

import (
	"context"

	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/shopspring/decimal"
)

// LedgerReader is the read-only view of the ledger the scorecard needs.
// Implemented by LedgerService.
type LedgerReader interface {
	Snapshot(id string) (*domain.Market, bool)
	AgentHistory(agentID string) []domain.AgentStake
	Agents() []string
}

// ScorecardService derives per-agent accuracy and profit estimates from the
// ledger. It holds no state of its own.
type ScorecardService struct {
	ledger  LedgerReader
	feeRate decimal.Decimal
}

// NewScorecardService creates a ScorecardService. feeRate is the flat house
// edge applied to correct stakes in the profit estimate.
func NewScorecardService(ledger LedgerReader, feeRate float64) *ScorecardService {
	return &ScorecardService{
		ledger:  ledger,
		feeRate: decimal.NewFromFloat(feeRate),
	}
}

// GetStats scores one agent. An unknown agent yields zero counts and an
// "N/A" accuracy rather than an error.
func (s *ScorecardService) GetStats(_ context.Context, agentID string) domain.AgentStats {
	return domain.ScoreAgent(agentID, s.ledger.AgentHistory(agentID), s.ledger.Snapshot, s.feeRate)
}

// Leaderboard scores every known agent and returns the top limit entries.
// limit <= 0 returns everyone.
func (s *ScorecardService) Leaderboard(ctx context.Context, limit int) []domain.AgentStats {
	agents := s.ledger.Agents()
	board := make([]domain.AgentStats, 0, len(agents))
	for _, id := range agents {
		board = append(board, s.GetStats(ctx, id))
	}
	domain.RankAgents(board)
	if limit > 0 && len(board) > limit {
		board = board[:limit]
	}
	return board
}

// History returns the agent's raw stake history.
func (s *ScorecardService) History(_ context.Context, agentID string) []domain.AgentStake {
	return s.ledger.AgentHistory(agentID)
}
