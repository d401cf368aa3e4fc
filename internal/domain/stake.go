package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Confidence bounds and the value used when a stake does not declare one.
const (
	MinConfidence     = 0
	MaxConfidence     = 100
	DefaultConfidence = 50
)

// Stake is one agent's wager on one side of a market. Immutable once recorded.
type Stake struct {
	ID         string          `json:"id"`
	AgentID    string          `json:"agent_id"`
	Position   Side            `json:"position"`
	Amount     decimal.Decimal `json:"amount"`
	Confidence int             `json:"confidence"` // declared %, informational only
	Reasoning  string          `json:"reasoning"`  // informational only
	Timestamp  time.Time       `json:"timestamp"`
}

// AgentStake is an entry of the agent history index: a stake tagged with the
// market it belongs to.
type AgentStake struct {
	MarketID string `json:"market_id"`
	Stake
}

// PlaceStakeRequest carries the raw inputs for placing a stake. Confidence
// nil means "use the configured default".
type PlaceStakeRequest struct {
	MarketID   string
	AgentID    string
	Position   string
	Amount     *decimal.Decimal
	Confidence *int
	Reasoning  string
}

// ValidatedStake is a PlaceStakeRequest that passed argument checks.
type ValidatedStake struct {
	AgentID    string
	Position   Side
	Amount     decimal.Decimal
	Confidence *int
	Reasoning  string
}

// Validate checks every field that does not depend on market state.
func (r PlaceStakeRequest) Validate() (ValidatedStake, error) {
	agent := strings.TrimSpace(r.AgentID)
	if agent == "" {
		return ValidatedStake{}, invalidf("agent_id is required")
	}
	if strings.TrimSpace(r.Position) == "" {
		return ValidatedStake{}, invalidf("position (yes/no) is required")
	}
	side, err := ParseSide(r.Position)
	if err != nil {
		return ValidatedStake{}, err
	}
	if r.Amount == nil {
		return ValidatedStake{}, invalidf("amount is required")
	}
	if !r.Amount.IsPositive() {
		return ValidatedStake{}, invalidf("amount must be positive, got %s", r.Amount.String())
	}
	if r.Confidence != nil && (*r.Confidence < MinConfidence || *r.Confidence > MaxConfidence) {
		return ValidatedStake{}, invalidf("confidence must be between %d and %d", MinConfidence, MaxConfidence)
	}
	return ValidatedStake{
		AgentID:    agent,
		Position:   side,
		Amount:     *r.Amount,
		Confidence: r.Confidence,
		Reasoning:  r.Reasoning,
	}, nil
}

// StakeReceipt is returned to the staking agent: the recorded stake, the
// prospective entry odds right after it, and the new combined pool.
type StakeReceipt struct {
	Stake       Stake           `json:"prediction"`
	CurrentOdds Odds            `json:"current_odds"`
	TotalPool   decimal.Decimal `json:"total_pool"`
}
