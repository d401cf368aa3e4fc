// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeMarketCreated  MsgType = MsgType(domain.EventMarketCreated)
	MsgTypeStakePlaced    MsgType = MsgType(domain.EventStakePlaced)
	MsgTypeMarketResolved MsgType = MsgType(domain.EventMarketResolved)
	MsgTypeOddsUpdate     MsgType = MsgType(domain.EventOddsUpdate)
	MsgTypeMarketExpired  MsgType = MsgType(domain.EventMarketExpired)
	MsgTypeError          MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketCreatedMessage — broadcast when a market opens.
// ──────────────────────────────────────────────────────────────────────────────

// MarketCreatedMessage announces a new market.
type MarketCreatedMessage struct {
	Type      MsgType   `json:"type"`
	MarketID  string    `json:"market_id"`
	Symbol    string    `json:"symbol"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// StakePlacedMessage — broadcast after a stake is accepted so odds refresh.
// ──────────────────────────────────────────────────────────────────────────────

// StakePlacedMessage notifies all clients that the pool ratios have changed.
type StakePlacedMessage struct {
	Type       MsgType         `json:"type"`
	MarketID   string          `json:"market_id"`
	Symbol     string          `json:"symbol"`
	AgentID    string          `json:"agent_id"`
	Position   domain.Side     `json:"position"`
	Amount     decimal.Decimal `json:"amount"`
	Confidence int             `json:"confidence"`
	EntryOdds  domain.Odds     `json:"entry_odds"`
	PayoutOdds domain.Odds     `json:"payout_odds"`
	Pools      domain.Pools    `json:"pools"`
	TotalPool  decimal.Decimal `json:"total_pool"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketResolvedMessage — broadcast when a market is settled.
// ──────────────────────────────────────────────────────────────────────────────

// MarketResolvedMessage tells clients which side won and who got paid.
type MarketResolvedMessage struct {
	Type              MsgType          `json:"type"`
	MarketID          string           `json:"market_id"`
	Symbol            string           `json:"symbol"`
	Outcome           domain.Side      `json:"outcome"`
	PriceAtResolution *decimal.Decimal `json:"price_at_resolution,omitempty"`
	Pools             domain.Pools     `json:"pools"`
	TotalPool         decimal.Decimal  `json:"total_pool"`
	Winners           []domain.Payout  `json:"winners"`
	Timestamp         time.Time        `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// OddsUpdateMessage — periodic snapshot of every open market.
// ──────────────────────────────────────────────────────────────────────────────

// OddsUpdateMessage carries pool state, payout odds and the countdown.
type OddsUpdateMessage struct {
	Type             MsgType         `json:"type"`
	MarketID         string          `json:"market_id"`
	Symbol           string          `json:"symbol"`
	Odds             domain.Odds     `json:"odds"`
	Pools            domain.Pools    `json:"pools"`
	TotalPool        decimal.Decimal `json:"total_pool"`
	ParticipantCount int             `json:"participant_count"`
	TimeLeftSeconds  int64           `json:"time_left_seconds"`
	Timestamp        time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketExpiredMessage — sent once when an open market passes its expiry.
// ──────────────────────────────────────────────────────────────────────────────

// MarketExpiredMessage is informational: the market stays open until resolved.
type MarketExpiredMessage struct {
	Type      MsgType   `json:"type"`
	MarketID  string    `json:"market_id"`
	Symbol    string    `json:"symbol"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

// MessageFor converts a ledger event to its wire message. Returns nil for an
// unknown event type.
func MessageFor(ev domain.MarketEvent) any {
	m := ev.Market.Market
	if m == nil {
		return nil
	}
	switch ev.Type {
	case domain.EventMarketCreated:
		return MarketCreatedMessage{
			Type:      MsgTypeMarketCreated,
			MarketID:  m.ID,
			Symbol:    m.Subject,
			Question:  m.Question,
			Options:   m.Options,
			ExpiresAt: m.ExpiresAt,
			Timestamp: ev.Timestamp,
		}

	case domain.EventStakePlaced:
		msg := StakePlacedMessage{
			Type:       MsgTypeStakePlaced,
			MarketID:   m.ID,
			Symbol:     m.Subject,
			PayoutOdds: ev.Market.CurrentOdds,
			Pools:      m.Pools,
			TotalPool:  ev.Market.TotalPool,
			Timestamp:  ev.Timestamp,
		}
		if ev.Stake != nil {
			msg.AgentID = ev.Stake.AgentID
			msg.Position = ev.Stake.Position
			msg.Amount = ev.Stake.Amount
			msg.Confidence = ev.Stake.Confidence
		}
		if ev.EntryOdds != nil {
			msg.EntryOdds = *ev.EntryOdds
		}
		return msg

	case domain.EventMarketResolved:
		msg := MarketResolvedMessage{
			Type:      MsgTypeMarketResolved,
			MarketID:  m.ID,
			Symbol:    m.Subject,
			Pools:     m.Pools,
			TotalPool: ev.Market.TotalPool,
			Winners:   ev.Payouts,
			Timestamp: ev.Timestamp,
		}
		if m.Result != nil {
			msg.Outcome = m.Result.Outcome
			msg.PriceAtResolution = m.Result.PriceAtResolution
		}
		return msg

	case domain.EventOddsUpdate:
		left := int64(m.ExpiresAt.Sub(ev.Timestamp).Seconds())
		if left < 0 {
			left = 0
		}
		return OddsUpdateMessage{
			Type:             MsgTypeOddsUpdate,
			MarketID:         m.ID,
			Symbol:           m.Subject,
			Odds:             ev.Market.CurrentOdds,
			Pools:            m.Pools,
			TotalPool:        ev.Market.TotalPool,
			ParticipantCount: ev.Market.ParticipantCount,
			TimeLeftSeconds:  left,
			Timestamp:        ev.Timestamp,
		}

	case domain.EventMarketExpired:
		return MarketExpiredMessage{
			Type:      MsgTypeMarketExpired,
			MarketID:  m.ID,
			Symbol:    m.Subject,
			ExpiresAt: m.ExpiresAt,
			Timestamp: ev.Timestamp,
		}
	}
	return nil
}
