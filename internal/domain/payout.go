package domain

import "github.com/shopspring/decimal"

// PayoutPlaces is the number of decimals payouts are rounded to.
const PayoutPlaces = 2

// Payout is one line of a payout schedule.
type Payout struct {
	StakeID string          `json:"stake_id"`
	AgentID string          `json:"agent_id"`
	Staked  decimal.Decimal `json:"bet"`
	Payout  decimal.Decimal `json:"payout"`
}

// ComputePayouts returns the payout schedule for a resolved market: one entry
// per winning stake, in stake order.
//
//	payout = stake.Amount / winPool × (winPool + losePool)
//
// rounded to PayoutPlaces. When the winning pool is empty every computed
// payout is zero and the losing pool is not distributed. Returns nil for a
// market that is not resolved.
func ComputePayouts(m *Market) []Payout {
	if !m.IsResolved() || m.Result == nil {
		return nil
	}
	outcome := m.Result.Outcome
	winPool := m.Pools.For(outcome)
	total := winPool.Add(m.Pools.For(outcome.Other()))

	payouts := make([]Payout, 0, len(m.Stakes))
	for _, st := range m.Stakes {
		if st.Position != outcome {
			continue
		}
		amount := decimal.Zero
		if !winPool.IsZero() {
			amount = st.Amount.Div(winPool).Mul(total).Round(PayoutPlaces)
		}
		payouts = append(payouts, Payout{
			StakeID: st.ID,
			AgentID: st.AgentID,
			Staked:  st.Amount,
			Payout:  amount,
		})
	}
	return payouts
}

// TotalPaid sums the payout column of a schedule.
func TotalPaid(payouts []Payout) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payouts {
		sum = sum.Add(p.Payout)
	}
	return sum
}
