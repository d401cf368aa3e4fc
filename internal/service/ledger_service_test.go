package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evetabi/memeoracle/internal/config"
	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/evetabi/memeoracle/internal/repository"
	"github.com/evetabi/memeoracle/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fixtures ──────────────────────────────────────────────────────────────────

var testLedgerConfig = config.LedgerConfig{
	DefaultExpiry:     24 * time.Hour,
	DefaultOptions:    []string{"YES - Moon 🚀", "NO - Rug 💀"},
	DefaultConfidence: 50,
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newLedger(t *testing.T, j service.Journal) *service.LedgerService {
	t.Helper()
	l := service.NewLedgerService(testLedgerConfig, j, nil)
	l.SetClock(fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}.Now)
	t.Cleanup(l.Close)
	return l
}

// tickingClock advances one second per reading.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func amt(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func createMarket(t *testing.T, l *service.LedgerService) *domain.Market {
	t.Helper()
	m, err := l.CreateMarket(context.Background(), domain.CreateMarketRequest{
		Subject:  "WOJAK",
		Question: "Will WOJAK 10x this week?",
	})
	require.NoError(t, err)
	return m
}

func stakeOn(t *testing.T, l *service.LedgerService, marketID, agent, side, amount string) *domain.StakeReceipt {
	t.Helper()
	r, err := l.PlaceStake(context.Background(), domain.PlaceStakeRequest{
		MarketID: marketID, AgentID: agent, Position: side, Amount: amt(amount),
	})
	require.NoError(t, err)
	return r
}

// recorder collects broadcast events.
type recorder struct {
	mu     sync.Mutex
	events []domain.MarketEvent
}

func (r *recorder) BroadcastMarketEvent(ev domain.MarketEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) participants() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Market.ParticipantCount)
	}
	return out
}

func (r *recorder) types() map[domain.EventType]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.EventType]int)
	for _, ev := range r.events {
		out[ev.Type]++
	}
	return out
}

// failingJournal fails the selected write.
type failingJournal struct {
	failStake, failResolve bool
}

var errDiskFull = errors.New("disk full")

func (f *failingJournal) SaveMarket(context.Context, int, *domain.Market) error { return nil }
func (f *failingJournal) AppendStake(context.Context, string, int, domain.Stake) error {
	if f.failStake {
		return errDiskFull
	}
	return nil
}
func (f *failingJournal) SaveResolution(context.Context, string, domain.Resolution) error {
	if f.failResolve {
		return errDiskFull
	}
	return nil
}
func (f *failingJournal) LoadMarkets(context.Context) ([]*domain.Market, error) { return nil, nil }

// ── CreateMarket ──────────────────────────────────────────────────────────────

func TestCreateMarketDefaults(t *testing.T) {
	l := newLedger(t, nil)
	m := createMarket(t, l)

	assert.Len(t, m.ID, 32)
	assert.Equal(t, domain.StatusOpen, m.Status)
	assert.Equal(t, testLedgerConfig.DefaultOptions, m.Options)
	assert.True(t, m.Pools.Yes.IsZero())
	assert.True(t, m.Pools.No.IsZero())
	assert.Empty(t, m.Stakes)
	assert.Nil(t, m.Result)
	assert.Equal(t, 24*time.Hour, m.ExpiresAt.Sub(m.CreatedAt))
}

func TestCreateMarketCustomExpiry(t *testing.T) {
	l := newLedger(t, nil)
	m, err := l.CreateMarket(context.Background(), domain.CreateMarketRequest{
		Subject: "GIGA", Question: "q", Options: []string{"Pump", "Dump"}, ExpiresIn: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pump", "Dump"}, m.Options)
	assert.Equal(t, time.Hour, m.ExpiresAt.Sub(m.CreatedAt))
}

func TestCreateMarketValidation(t *testing.T) {
	l := newLedger(t, nil)
	ctx := context.Background()
	for name, req := range map[string]domain.CreateMarketRequest{
		"missing subject":  {Question: "q"},
		"missing question": {Subject: "s", Question: "   "},
		"negative expiry":  {Subject: "s", Question: "q", ExpiresIn: -time.Second},
	} {
		_, err := l.CreateMarket(ctx, req)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, name)
	}
}

func TestCreateMarketUniqueIDs(t *testing.T) {
	l := newLedger(t, nil)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := createMarket(t, l).ID
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

// ── PlaceStake ────────────────────────────────────────────────────────────────

func TestPlaceStakeUpdatesPoolsAndOdds(t *testing.T) {
	l := newLedger(t, nil)
	m := createMarket(t, l)

	r := stakeOn(t, l, m.ID, "A", "YES", "100")
	assert.Equal(t, domain.SideYes, r.Stake.Position)
	assert.Equal(t, 50, r.Stake.Confidence)
	assert.Equal(t, domain.Odds{Yes: "1.00", No: "1.00"}, r.CurrentOdds)
	assert.True(t, r.TotalPool.Equal(decimal.NewFromInt(100)))

	r = stakeOn(t, l, m.ID, "B", "no", "50")
	assert.Equal(t, domain.Odds{Yes: "1.50", No: "3.00"}, r.CurrentOdds)
	assert.True(t, r.TotalPool.Equal(decimal.NewFromInt(150)))

	detail, err := l.GetMarket(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Odds{Yes: "1.50", No: "3.00"}, detail.CurrentOdds)
	assert.Len(t, detail.Stakes, 2)
	assert.True(t, detail.Pools.Yes.Equal(decimal.NewFromInt(100)))
	assert.True(t, detail.Pools.No.Equal(decimal.NewFromInt(50)))
}

func TestPlaceStakeKeepsDeclaredConfidence(t *testing.T) {
	l := newLedger(t, nil)
	m := createMarket(t, l)
	zero := 0
	r, err := l.PlaceStake(context.Background(), domain.PlaceStakeRequest{
		MarketID: m.ID, AgentID: "A", Position: "yes", Amount: amt("1"), Confidence: &zero, Reasoning: "hunch",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Stake.Confidence)
	assert.Equal(t, "hunch", r.Stake.Reasoning)
}

func TestPlaceStakeErrors(t *testing.T) {
	l := newLedger(t, nil)
	ctx := context.Background()
	m := createMarket(t, l)

	_, err := l.PlaceStake(ctx, domain.PlaceStakeRequest{MarketID: "missing", AgentID: "A", Position: "yes", Amount: amt("1")})
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)

	_, err = l.PlaceStake(ctx, domain.PlaceStakeRequest{MarketID: m.ID, AgentID: "A", Position: "maybe", Amount: amt("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = l.PlaceStake(ctx, domain.PlaceStakeRequest{MarketID: m.ID, AgentID: "A", Position: "yes", Amount: amt("0")})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = l.PlaceStake(ctx, domain.PlaceStakeRequest{MarketID: m.ID, AgentID: "", Position: "yes", Amount: amt("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	// An unknown market wins over a malformed request.
	_, err = l.PlaceStake(ctx, domain.PlaceStakeRequest{MarketID: "missing", AgentID: "", Position: "maybe", Amount: amt("0")})
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)

	// Nothing above may have touched the market.
	detail, err := l.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Stakes)
	assert.True(t, detail.TotalPool.IsZero())
}

func TestPlaceStakeOnResolvedMarket(t *testing.T) {
	l := newLedger(t, nil)
	ctx := context.Background()
	m := createMarket(t, l)
	stakeOn(t, l, m.ID, "A", "yes", "10")
	_, err := l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: m.ID, Outcome: "yes"})
	require.NoError(t, err)

	before, err := l.GetMarket(ctx, m.ID)
	require.NoError(t, err)

	_, err = l.PlaceStake(ctx, domain.PlaceStakeRequest{MarketID: m.ID, AgentID: "B", Position: "no", Amount: amt("5")})
	assert.ErrorIs(t, err, domain.ErrMarketClosed)
	assert.Empty(t, l.AgentHistory("B"))

	// A closed market wins over a malformed request.
	_, err = l.PlaceStake(ctx, domain.PlaceStakeRequest{MarketID: m.ID, AgentID: "C", Position: "yes", Amount: amt("0")})
	assert.ErrorIs(t, err, domain.ErrMarketClosed)

	after, err := l.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, after.Pools.Yes.Equal(before.Pools.Yes), "yes pool changed: %s", after.Pools.Yes)
	assert.True(t, after.Pools.No.Equal(before.Pools.No), "no pool changed: %s", after.Pools.No)
	assert.Len(t, after.Stakes, len(before.Stakes))
	assert.Len(t, after.Stakes, 1)
}

// ── ResolveMarket ─────────────────────────────────────────────────────────────

func TestResolveMarketPayouts(t *testing.T) {
	l := newLedger(t, nil)
	ctx := context.Background()
	m := createMarket(t, l)
	stakeOn(t, l, m.ID, "A", "yes", "200")
	stakeOn(t, l, m.ID, "B", "no", "100")

	price := decimal.RequireFromString("0.00042")
	s, err := l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: m.ID, Outcome: "Yes", PriceAtResolution: &price})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusResolved, s.Market.Status)
	require.NotNil(t, s.Market.Result)
	assert.Equal(t, domain.SideYes, s.Market.Result.Outcome)
	assert.True(t, s.Market.Result.PriceAtResolution.Equal(price))
	require.Len(t, s.Payouts, 1)
	assert.Equal(t, "A", s.Payouts[0].AgentID)
	assert.Equal(t, "300.00", s.Payouts[0].Payout.StringFixed(2))
}

func TestResolveMarketEmptyWinningPool(t *testing.T) {
	l := newLedger(t, nil)
	m := createMarket(t, l)
	stakeOn(t, l, m.ID, "A", "no", "40")

	s, err := l.ResolveMarket(context.Background(), domain.ResolveRequest{MarketID: m.ID, Outcome: "yes"})
	require.NoError(t, err)
	assert.Empty(t, s.Payouts)
}

func TestResolveMarketErrors(t *testing.T) {
	l := newLedger(t, nil)
	ctx := context.Background()
	m := createMarket(t, l)

	_, err := l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: "missing", Outcome: "yes"})
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)

	_, err = l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: "missing", Outcome: "moon"})
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)

	_, err = l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: m.ID, Outcome: "moon"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: m.ID, Outcome: "no"})
	require.NoError(t, err)

	_, err = l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: m.ID, Outcome: "yes"})
	assert.ErrorIs(t, err, domain.ErrMarketAlreadyResolved)

	detail, err := l.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SideNo, detail.Result.Outcome, "second resolution must not change the outcome")
}

// ── ListMarkets ───────────────────────────────────────────────────────────────

func TestListMarketsFilters(t *testing.T) {
	l := newLedger(t, nil)
	ctx := context.Background()
	first := createMarket(t, l)
	second := createMarket(t, l)
	stakeOn(t, l, second.ID, "A", "yes", "5")
	_, err := l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: first.ID, Outcome: "no"})
	require.NoError(t, err)

	open := l.ListMarkets(ctx, domain.FilterOpen)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)
	assert.Equal(t, 1, open[0].ParticipantCount)
	assert.Equal(t, domain.Odds{Yes: "1.00", No: domain.NotApplicable}, open[0].CurrentOdds)

	resolved := l.ListMarkets(ctx, domain.FilterResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, first.ID, resolved[0].ID)

	all := l.ListMarkets(ctx, domain.FilterAll)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID, "creation order")
}

func TestGetMarketNotFound(t *testing.T) {
	_, err := newLedger(t, nil).GetMarket(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestSnapshotIsIsolated(t *testing.T) {
	l := newLedger(t, nil)
	m := createMarket(t, l)
	stakeOn(t, l, m.ID, "A", "yes", "5")

	snap, ok := l.Snapshot(m.ID)
	require.True(t, ok)
	snap.Stakes = append(snap.Stakes, domain.Stake{ID: "forged"})
	snap.Options[0] = "changed"

	stakeOn(t, l, m.ID, "B", "no", "5")
	again, _ := l.Snapshot(m.ID)
	require.Len(t, again.Stakes, 2)
	assert.NotEqual(t, "forged", again.Stakes[1].ID)
	assert.Equal(t, testLedgerConfig.DefaultOptions[0], again.Options[0])
}

// ── Journal ───────────────────────────────────────────────────────────────────

func TestJournalFailureLeavesLedgerUntouched(t *testing.T) {
	j := &failingJournal{}
	l := newLedger(t, j)
	ctx := context.Background()
	m := createMarket(t, l)
	stakeOn(t, l, m.ID, "A", "yes", "10")

	j.failStake = true
	_, err := l.PlaceStake(ctx, domain.PlaceStakeRequest{MarketID: m.ID, AgentID: "B", Position: "no", Amount: amt("7")})
	require.ErrorIs(t, err, errDiskFull)

	detail, err := l.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Stakes, 1)
	assert.True(t, detail.Pools.No.IsZero())
	assert.Empty(t, l.AgentHistory("B"))

	j.failResolve = true
	_, err = l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: m.ID, Outcome: "yes"})
	require.ErrorIs(t, err, errDiskFull)
	detail, _ = l.GetMarket(ctx, m.ID)
	assert.Equal(t, domain.StatusOpen, detail.Status)
}

func TestRestoreFromSQLiteJournal(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, config.StorageConfig{Driver: config.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	journal := repository.NewSQLJournal(db)

	l := newLedger(t, journal)
	first := createMarket(t, l)
	second := createMarket(t, l)
	stakeOn(t, l, first.ID, "A", "yes", "200")
	stakeOn(t, l, first.ID, "B", "no", "100")
	stakeOn(t, l, second.ID, "A", "no", "3.5")
	_, err = l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: first.ID, Outcome: "yes"})
	require.NoError(t, err)

	restored := newLedger(t, journal)
	require.NoError(t, restored.Restore(ctx))

	all := restored.ListMarkets(ctx, domain.FilterAll)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, domain.StatusResolved, all[0].Status)
	assert.True(t, all[0].Pools.Yes.Equal(decimal.NewFromInt(200)))
	assert.True(t, all[0].Pools.No.Equal(decimal.NewFromInt(100)))
	assert.True(t, all[1].Pools.No.Equal(decimal.RequireFromString("3.5")))

	sc := service.NewScorecardService(restored, 0.10)
	before := service.NewScorecardService(l, 0.10)
	got, want := sc.GetStats(ctx, "A"), before.GetStats(ctx, "A")
	assert.Equal(t, want.Accuracy, got.Accuracy)
	assert.Equal(t, want.EstimatedProfit, got.EstimatedProfit)
	assert.Equal(t, want.ResolvedPredictions, got.ResolvedPredictions)
	assert.Equal(t, "180.00", got.EstimatedProfit)
	assert.Equal(t, []string{"A", "B"}, restored.Agents())

	// The restored ledger keeps journaling where the old one stopped.
	stakeOn(t, restored, second.ID, "C", "yes", "1")
	_, err = restored.ResolveMarket(ctx, domain.ResolveRequest{MarketID: first.ID, Outcome: "no"})
	assert.ErrorIs(t, err, domain.ErrMarketAlreadyResolved)
}

func TestRestoreKeepsAgentHistoryInArrivalOrder(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, config.StorageConfig{Driver: config.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	journal := repository.NewSQLJournal(db)

	l := newLedger(t, journal)
	l.SetClock((&tickingClock{t: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}).Now)
	first := createMarket(t, l)
	second := createMarket(t, l)
	stakeOn(t, l, second.ID, "A", "yes", "1")
	stakeOn(t, l, first.ID, "A", "no", "2")
	stakeOn(t, l, second.ID, "A", "no", "3")
	stakeOn(t, l, first.ID, "A", "yes", "4")

	restored := newLedger(t, journal)
	require.NoError(t, restored.Restore(ctx))

	want := l.AgentHistory("A")
	got := restored.AgentHistory("A")
	require.Len(t, got, 4)
	for i := range want {
		assert.Equal(t, want[i].MarketID, got[i].MarketID, "entry %d", i)
		assert.Equal(t, want[i].Stake.ID, got[i].Stake.ID, "entry %d", i)
	}
	assert.Equal(t, []string{second.ID, first.ID, second.ID, first.ID},
		[]string{got[0].MarketID, got[1].MarketID, got[2].MarketID, got[3].MarketID})
}

// ── Seed & stats ──────────────────────────────────────────────────────────────

func TestSeedDemo(t *testing.T) {
	l := newLedger(t, nil)
	ctx := context.Background()
	require.NoError(t, l.SeedDemo(ctx))
	require.NoError(t, l.SeedDemo(ctx))

	detail, err := l.GetMarket(ctx, service.DemoMarketID)
	require.NoError(t, err)
	assert.Len(t, detail.Stakes, 3)
	assert.True(t, detail.Pools.Yes.Equal(decimal.NewFromInt(500)))
	assert.True(t, detail.Pools.No.Equal(decimal.NewFromInt(150)))

	stats := l.Stats()
	assert.Equal(t, 1, stats.OpenMarkets)
	assert.Equal(t, 3, stats.Stakes)
	assert.Equal(t, 3, stats.Agents)
	assert.True(t, stats.TotalVolume.Equal(decimal.NewFromInt(650)))
}

// ── Broadcast ─────────────────────────────────────────────────────────────────

func TestBroadcastsCommittedChanges(t *testing.T) {
	l := newLedger(t, nil)
	rec := &recorder{}
	l.SetBroadcaster(rec)
	ctx := context.Background()

	m := createMarket(t, l)
	stakeOn(t, l, m.ID, "A", "yes", "1")
	_, err := l.ResolveMarket(ctx, domain.ResolveRequest{MarketID: m.ID, Outcome: "yes"})
	require.NoError(t, err)

	// A rejected stake emits nothing.
	_, err = l.PlaceStake(ctx, domain.PlaceStakeRequest{MarketID: m.ID, AgentID: "B", Position: "no", Amount: amt("1")})
	require.Error(t, err)

	require.Eventually(t, func() bool { return len(rec.types()) == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, map[domain.EventType]int{
		domain.EventMarketCreated:  1,
		domain.EventStakePlaced:    1,
		domain.EventMarketResolved: 1,
	}, rec.types())
}

// slowSink stalls on the first stake event of a market.
type slowSink struct{ recorder }

func (s *slowSink) BroadcastMarketEvent(ev domain.MarketEvent) {
	if ev.Type != domain.EventStakePlaced {
		return
	}
	if ev.Market.ParticipantCount == 1 {
		time.Sleep(50 * time.Millisecond)
	}
	s.recorder.BroadcastMarketEvent(ev)
}

func TestBroadcastsInCommitOrder(t *testing.T) {
	l := newLedger(t, nil)
	sink := &slowSink{}
	l.SetBroadcaster(sink)

	m := createMarket(t, l)
	stakeOn(t, l, m.ID, "A", "yes", "1")
	stakeOn(t, l, m.ID, "B", "no", "1")

	require.Eventually(t, func() bool { return len(sink.participants()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 2}, sink.participants())
}

func TestSetBroadcasterWhileStaking(t *testing.T) {
	l := newLedger(t, nil)
	m := createMarket(t, l)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := l.PlaceStake(context.Background(), domain.PlaceStakeRequest{
				MarketID: m.ID, AgentID: "A", Position: "yes", Amount: amt("1"),
			})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			l.SetBroadcaster(&recorder{})
		}
	}()
	wg.Wait()

	detail, err := l.GetMarket(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Stakes, 50)
}

// panicSink panics on every event.
type panicSink struct{}

func (panicSink) BroadcastMarketEvent(domain.MarketEvent) { panic("sink exploded") }

func TestBroadcastPanicDoesNotStopDispatch(t *testing.T) {
	l := newLedger(t, nil)
	l.SetBroadcaster(panicSink{})
	m := createMarket(t, l)

	rec := &recorder{}
	l.SetBroadcaster(rec)
	stakeOn(t, l, m.ID, "A", "yes", "1")

	require.Eventually(t, func() bool { return rec.types()[domain.EventStakePlaced] == 1 }, time.Second, 5*time.Millisecond)
}
