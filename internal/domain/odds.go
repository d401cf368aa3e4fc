package domain

import "github.com/shopspring/decimal"

// NotApplicable is reported where a ratio has no defined value.
const NotApplicable = "N/A"

// Odds is the display form of a pair of decimal odds, two decimals each.
type Odds struct {
	Yes string `json:"yes"`
	No  string `json:"no"`
}

// PayoutOdds returns the retrospective decimal odds for side: the amount
// returned per unit staked if side wins, given the pools as they stand.
//
//	PayoutOdds(side) = total / pool(side)
//
// ok is false when pool(side) is zero.
func (m *Market) PayoutOdds(side Side) (odds decimal.Decimal, ok bool) {
	pool := m.Pools.For(side)
	if pool.IsZero() {
		return decimal.Zero, false
	}
	return m.TotalPool().Div(pool), true
}

// EntryOdds returns the prospective odds quoted to an agent right after a
// stake is placed. The staker's own weight in the final pool is not yet
// known, so the quote is the opposing-to-own pool ratio plus the returned
// stake:
//
//	EntryOdds(side) = pool(other) / pool(side) + 1
//
// It is 1 whenever either pool is empty. This is intentionally a different
// figure from PayoutOdds.
func (m *Market) EntryOdds(side Side) decimal.Decimal {
	own := m.Pools.For(side)
	other := m.Pools.For(side.Other())
	if own.IsZero() || other.IsZero() {
		return decimal.NewFromInt(1)
	}
	return other.Div(own).Add(decimal.NewFromInt(1))
}

// PayoutOddsView formats PayoutOdds for both sides.
func (m *Market) PayoutOddsView() Odds {
	format := func(s Side) string {
		o, ok := m.PayoutOdds(s)
		if !ok {
			return NotApplicable
		}
		return o.StringFixed(2)
	}
	return Odds{Yes: format(SideYes), No: format(SideNo)}
}

// EntryOddsView formats EntryOdds for both sides.
func (m *Market) EntryOddsView() Odds {
	return Odds{
		Yes: m.EntryOdds(SideYes).StringFixed(2),
		No:  m.EntryOdds(SideNo).StringFixed(2),
	}
}
