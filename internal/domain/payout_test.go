package domain_test

import (
	"testing"
	"time"

	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func stake(id, agent string, side domain.Side, amount string) domain.Stake {
	return domain.Stake{ID: id, AgentID: agent, Position: side, Amount: dec(amount), Timestamp: time.Unix(0, 0)}
}

func buildMarket(stakes ...domain.Stake) *domain.Market {
	m := &domain.Market{ID: "m1", Subject: "WOJAK", Status: domain.StatusOpen}
	for _, st := range stakes {
		m = m.WithStake(st)
	}
	return m
}

// TestPayoutSingleWinner covers the basic redistribution:
//
//	yes = 200 (A), no = 100 (B), outcome yes
//	A receives 200 / 200 × 300 = 300.00, B receives nothing.
func TestPayoutSingleWinner(t *testing.T) {
	m := buildMarket(
		stake("s1", "A", domain.SideYes, "200"),
		stake("s2", "B", domain.SideNo, "100"),
	).Resolve(domain.Resolution{Outcome: domain.SideYes})

	payouts := domain.ComputePayouts(m)
	if len(payouts) != 1 {
		t.Fatalf("len(payouts) = %d, want 1", len(payouts))
	}
	p := payouts[0]
	if p.AgentID != "A" || p.StakeID != "s1" {
		t.Errorf("payout for %s/%s, want A/s1", p.AgentID, p.StakeID)
	}
	if !p.Payout.Equal(dec("300")) {
		t.Errorf("payout = %s, want 300.00", p.Payout.StringFixed(2))
	}
	if !p.Staked.Equal(dec("200")) {
		t.Errorf("staked = %s, want 200", p.Staked)
	}
}

func TestPayoutProportionalSplit(t *testing.T) {
	m := buildMarket(
		stake("s1", "meme-hunter", domain.SideYes, "200"),
		stake("s2", "rug-detector", domain.SideNo, "150"),
		stake("s3", "degen-ai", domain.SideYes, "300"),
	).Resolve(domain.Resolution{Outcome: domain.SideYes})

	payouts := domain.ComputePayouts(m)
	want := map[string]string{"meme-hunter": "260", "degen-ai": "390"}
	if len(payouts) != len(want) {
		t.Fatalf("len(payouts) = %d, want %d", len(payouts), len(want))
	}
	for _, p := range payouts {
		if !p.Payout.Equal(dec(want[p.AgentID])) {
			t.Errorf("%s payout = %s, want %s", p.AgentID, p.Payout, want[p.AgentID])
		}
	}
	if !domain.TotalPaid(payouts).Equal(m.TotalPool()) {
		t.Errorf("total paid %s != total pool %s", domain.TotalPaid(payouts), m.TotalPool())
	}
}

func TestPayoutSumWithinRounding(t *testing.T) {
	m := buildMarket(
		stake("s1", "a", domain.SideNo, "1"),
		stake("s2", "b", domain.SideNo, "1"),
		stake("s3", "c", domain.SideNo, "1"),
		stake("s4", "d", domain.SideYes, "10"),
	).Resolve(domain.Resolution{Outcome: domain.SideNo})

	payouts := domain.ComputePayouts(m)
	if len(payouts) != 3 {
		t.Fatalf("len(payouts) = %d, want 3", len(payouts))
	}
	// 13 / 3 per winner, rounded to cents.
	tolerance := dec("0.005").Mul(decimal.NewFromInt(int64(len(payouts))))
	diff := domain.TotalPaid(payouts).Sub(m.TotalPool()).Abs()
	if diff.GreaterThan(tolerance) {
		t.Errorf("sum of payouts off by %s, tolerance %s", diff, tolerance)
	}
	for _, p := range payouts {
		if !p.Payout.Equal(dec("4.33")) {
			t.Errorf("payout = %s, want 4.33", p.Payout)
		}
	}
}

func TestPayoutEmptyWinningPool(t *testing.T) {
	m := buildMarket(
		stake("s1", "A", domain.SideNo, "50"),
	).Resolve(domain.Resolution{Outcome: domain.SideYes})

	payouts := domain.ComputePayouts(m)
	if len(payouts) != 0 {
		t.Errorf("len(payouts) = %d, want 0 when nobody backed the outcome", len(payouts))
	}
}

func TestPayoutUnresolvedMarket(t *testing.T) {
	m := buildMarket(stake("s1", "A", domain.SideYes, "10"))
	if got := domain.ComputePayouts(m); got != nil {
		t.Errorf("ComputePayouts(open) = %v, want nil", got)
	}
}
