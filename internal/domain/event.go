package domain

import "time"

// EventType identifies the kind of market event so consumers can switch on it.
type EventType string

const (
	EventMarketCreated  EventType = "market_created"
	EventStakePlaced    EventType = "stake_placed"
	EventMarketResolved EventType = "market_resolved"
	EventOddsUpdate     EventType = "odds_update"
	EventMarketExpired  EventType = "market_expired"
)

// MarketEvent is a read-only notification about a market, emitted after the
// ledger has committed the change. It carries everything a downstream
// consumer (live feed, commentary service) needs without calling back in.
type MarketEvent struct {
	Type      EventType     `json:"type"`
	Market    MarketSummary `json:"market"`
	Stake     *Stake        `json:"stake,omitempty"`
	EntryOdds *Odds         `json:"entry_odds,omitempty"`
	Payouts   []Payout      `json:"payouts,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
