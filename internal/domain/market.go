// Package domain defines the core business entities and pool arithmetic for
// the meme-coin prediction market ledger.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	StatusOpen     MarketStatus = "open"     // accepting stakes
	StatusResolved MarketStatus = "resolved" // outcome fixed, terminal
)

// Side is one of the two outcomes an agent can stake on.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// IsValid returns true if the side is a recognised outcome.
func (s Side) IsValid() bool {
	return s == SideYes || s == SideNo
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// ParseSide normalises free-form input ("YES", " no ") to a Side.
// Returns ErrInvalidArgument for anything that is not yes/no.
func ParseSide(raw string) (Side, error) {
	s := Side(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", invalidf("position must be yes or no, got %q", raw)
	}
	return s, nil
}

// StatusFilter selects which markets ListMarkets returns.
type StatusFilter string

const (
	FilterOpen     StatusFilter = "open"
	FilterResolved StatusFilter = "resolved"
	FilterAll      StatusFilter = "all"
)

// ParseStatusFilter maps a query value to a filter; "" means open.
func ParseStatusFilter(raw string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FilterOpen:
		return FilterOpen, nil
	case FilterResolved:
		return FilterResolved, nil
	case FilterAll:
		return FilterAll, nil
	}
	return "", invalidf("unknown status filter %q", raw)
}

// Match reports whether a market with status st passes the filter.
func (f StatusFilter) Match(st MarketStatus) bool {
	switch f {
	case FilterAll:
		return true
	case FilterResolved:
		return st == StatusResolved
	default:
		return st == StatusOpen
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Pools
// ──────────────────────────────────────────────────────────────────────────────

// Pools holds the cumulative staked amount on each side.
type Pools struct {
	Yes decimal.Decimal `json:"yes"`
	No  decimal.Decimal `json:"no"`
}

// For returns the pool for the given side.
func (p Pools) For(s Side) decimal.Decimal {
	if s == SideYes {
		return p.Yes
	}
	return p.No
}

// Total returns the sum of both pools.
func (p Pools) Total() decimal.Decimal {
	return p.Yes.Add(p.No)
}

func (p Pools) add(s Side, amount decimal.Decimal) Pools {
	if s == SideYes {
		p.Yes = p.Yes.Add(amount)
	} else {
		p.No = p.No.Add(amount)
	}
	return p
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Resolution is the fixed outcome of a market. Immutable once set.
type Resolution struct {
	Outcome           Side             `json:"outcome"`
	PriceAtResolution *decimal.Decimal `json:"price_at_resolution,omitempty"`
	ResolvedAt        time.Time        `json:"resolved_at"`
}

// Market is a single yes/no question with two stake pools.
//
// A *Market handed out by the ledger is an immutable snapshot; every change
// produces a new value through WithStake or Resolve.
type Market struct {
	ID        string       `json:"id"`
	Subject   string       `json:"symbol"`
	Question  string       `json:"question"`
	Options   []string     `json:"options"`
	Pools     Pools        `json:"pools"`
	Stakes    []Stake      `json:"predictions"`
	Status    MarketStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	Result    *Resolution  `json:"result"`
}

// IsOpen returns true while the market is accepting stakes.
func (m *Market) IsOpen() bool {
	return m.Status == StatusOpen
}

// IsResolved returns true after the outcome has been fixed.
func (m *Market) IsResolved() bool {
	return m.Status == StatusResolved
}

// TotalPool returns the sum of both pools.
func (m *Market) TotalPool() decimal.Decimal {
	return m.Pools.Total()
}

// IsExpired reports whether ExpiresAt has passed. Informational only: the
// ledger never closes a market on expiry.
func (m *Market) IsExpired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

// WithStake returns a copy of m with st appended and its pool incremented.
// The receiver is left untouched; the new stake is written past the
// receiver's length so earlier snapshots never observe it.
func (m *Market) WithStake(st Stake) *Market {
	next := *m
	next.Stakes = append(m.Stakes, st)
	next.Pools = m.Pools.add(st.Position, st.Amount)
	return &next
}

// Resolve returns a copy of m transitioned to resolved with result r.
func (m *Market) Resolve(r Resolution) *Market {
	next := *m
	next.Status = StatusResolved
	next.Result = &r
	return &next
}

// Clone returns a snapshot safe to hand to callers: its slices are capped so
// an append by the caller can never write into the ledger's backing arrays.
func (m *Market) Clone() *Market {
	c := *m
	c.Stakes = m.Stakes[:len(m.Stakes):len(m.Stakes)]
	c.Options = append([]string(nil), m.Options...)
	if m.Result != nil {
		r := *m.Result
		c.Result = &r
	}
	return &c
}

// RecentStakes returns up to n of the most recent stakes, newest first.
func (m *Market) RecentStakes(n int) []Stake {
	if n > len(m.Stakes) {
		n = len(m.Stakes)
	}
	out := make([]Stake, 0, n)
	for i := len(m.Stakes) - 1; i >= len(m.Stakes)-n; i-- {
		out = append(out, m.Stakes[i])
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Read models
// ──────────────────────────────────────────────────────────────────────────────

// MarketSummary is the list-endpoint view of a market.
type MarketSummary struct {
	*Market
	TotalPool        decimal.Decimal `json:"total_pool"`
	ParticipantCount int             `json:"participant_count"`
	CurrentOdds      Odds            `json:"current_odds"`
}

// ToSummary builds a MarketSummary using retrospective payout odds.
func (m *Market) ToSummary() MarketSummary {
	return MarketSummary{
		Market:           m,
		TotalPool:        m.TotalPool(),
		ParticipantCount: len(m.Stakes),
		CurrentOdds:      m.PayoutOddsView(),
	}
}

// MarketDetail is the single-market view returned by GetMarket.
type MarketDetail struct {
	*Market
	CurrentOdds Odds            `json:"current_odds"`
	TotalPool   decimal.Decimal `json:"total_pool"`
}

// ToDetail builds a MarketDetail using retrospective payout odds.
func (m *Market) ToDetail() MarketDetail {
	return MarketDetail{
		Market:      m,
		CurrentOdds: m.PayoutOddsView(),
		TotalPool:   m.TotalPool(),
	}
}

// CreateMarketRequest carries the inputs for opening a market. Zero values
// for Options and ExpiresIn mean "use the configured default".
type CreateMarketRequest struct {
	Subject   string
	Question  string
	Options   []string
	ExpiresIn time.Duration
}

// ResolveRequest carries the inputs for fixing a market's outcome.
type ResolveRequest struct {
	MarketID          string
	Outcome           string
	PriceAtResolution *decimal.Decimal
}

// Settlement is the result of a resolution: the resolved market and the
// payout schedule for its winning stakes.
type Settlement struct {
	Market  *Market  `json:"market"`
	Payouts []Payout `json:"winners"`
}
