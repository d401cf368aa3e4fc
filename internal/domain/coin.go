package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coin is a trending meme coin from the sample feed. Display data only; the
// ledger never reads it.
type Coin struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Mint          string          `json:"mint"`
	LaunchTime    time.Time       `json:"launch_time"`
	CurrentMcap   decimal.Decimal `json:"current_mcap"`
	Holders       int             `json:"holders"`
	Volume24h     decimal.Decimal `json:"volume_24h"`
	PriceChange1h decimal.Decimal `json:"price_change_1h"`
	Sentiment     string          `json:"sentiment"`
	RiskScore     decimal.Decimal `json:"risk_score"`
}

// LedgerStats is an aggregate view of the ledger for health and dashboards.
type LedgerStats struct {
	OpenMarkets     int             `json:"open_markets"`
	ResolvedMarkets int             `json:"resolved_markets"`
	Stakes          int             `json:"stakes"`
	Agents          int             `json:"agents"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
}

// CommentaryKind names the prompt used to produce a Commentary.
type CommentaryKind string

const (
	CommentaryMarket   CommentaryKind = "market_analysis"
	CommentaryMeme     CommentaryKind = "meme_analysis"
	CommentaryRugCheck CommentaryKind = "rug_check"
)

// Commentary is generated text about a market or coin. Best effort and never
// part of ledger state.
type Commentary struct {
	Kind        CommentaryKind `json:"kind"`
	Subject     string         `json:"subject"`
	Text        string         `json:"text"`
	Model       string         `json:"model"`
	GeneratedAt time.Time      `json:"generated_at"`
}
