package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evetabi/memeoracle/internal/config"
	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into LedgerService
// ──────────────────────────────────────────────────────────────────────────────

// Journal persists ledger mutations. Implemented by repository.SQLJournal.
// Writes are issued while the market is locked and before the in-memory state
// changes, so an error leaves the ledger untouched.
type Journal interface {
	SaveMarket(ctx context.Context, seq int, m *domain.Market) error
	AppendStake(ctx context.Context, marketID string, seq int, st domain.Stake) error
	SaveResolution(ctx context.Context, marketID string, r domain.Resolution) error
	LoadMarkets(ctx context.Context) ([]*domain.Market, error)
}

// Broadcaster is the minimal interface the ledger needs to announce committed
// changes. Implemented by ws.Hub, notify.RedisPublisher and notify.Fanout.
type Broadcaster interface {
	BroadcastMarketEvent(ev domain.MarketEvent)
}

// ──────────────────────────────────────────────────────────────────────────────
// LedgerService
// ──────────────────────────────────────────────────────────────────────────────

// DemoMarketID is the fixed id of the market created by SeedDemo.
const DemoMarketID = "demo-wojak-moon"

// marketEntry guards one market. mu serialises writers; snap is the current
// immutable state and can be loaded without the lock.
type marketEntry struct {
	mu   sync.Mutex
	snap atomic.Pointer[domain.Market]
}

// eventQueueSize bounds the committed events waiting for the dispatcher.
const eventQueueSize = 1024

// broadcasterRef boxes a Broadcaster so it can live in an atomic.Pointer.
type broadcasterRef struct{ b Broadcaster }

// LedgerService owns every market, its pools and stakes, and the agent
// history index. It is safe for concurrent use.
type LedgerService struct {
	cfg         config.LedgerConfig
	journal     Journal // nil = memory only
	broadcaster atomic.Pointer[broadcasterRef]
	log         *slog.Logger
	now         func() time.Time

	// Committed events, enqueued under the lock that committed them and
	// delivered one at a time by dispatch.
	events    chan domain.MarketEvent
	done      chan struct{}
	closeOnce sync.Once

	regMu   sync.RWMutex
	markets map[string]*marketEntry
	order   []*marketEntry // creation order

	// Lock order: a market's mu before idxMu.
	idxMu   sync.RWMutex
	byAgent map[string][]domain.AgentStake
}

// NewLedgerService creates a LedgerService. journal may be nil.
func NewLedgerService(cfg config.LedgerConfig, journal Journal, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LedgerService{
		cfg:     cfg,
		journal: journal,
		log:     logger,
		now:     func() time.Time { return time.Now().UTC() },
		events:  make(chan domain.MarketEvent, eventQueueSize),
		done:    make(chan struct{}),
		markets: make(map[string]*marketEntry),
		byAgent: make(map[string][]domain.AgentStake),
	}
	go s.dispatch()
	return s
}

// SetBroadcaster injects the event sink post-construction. Safe to call while
// the ledger is in use; events committed before the first call are not
// announced.
func (s *LedgerService) SetBroadcaster(b Broadcaster) {
	if b == nil {
		s.broadcaster.Store(nil)
		return
	}
	s.broadcaster.Store(&broadcasterRef{b: b})
}

// Close stops the event dispatcher. Events still queued are dropped.
func (s *LedgerService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// SetClock replaces the time source. Intended for tests.
func (s *LedgerService) SetClock(now func() time.Time) { s.now = now }

// ──────────────────────────────────────────────────────────────────────────────
// CreateMarket
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarket opens a new market with empty pools.
func (s *LedgerService) CreateMarket(ctx context.Context, req domain.CreateMarketRequest) (*domain.Market, error) {
	m, err := s.createMarket(ctx, newMarketID(), req)
	if err != nil {
		return nil, fmt.Errorf("ledger_service.CreateMarket: %w", err)
	}
	return m, nil
}

func (s *LedgerService) createMarket(ctx context.Context, id string, req domain.CreateMarketRequest) (*domain.Market, error) {
	subject := strings.TrimSpace(req.Subject)
	question := strings.TrimSpace(req.Question)
	if subject == "" || question == "" {
		return nil, fmt.Errorf("%w: symbol and question required", domain.ErrInvalidArgument)
	}
	if req.ExpiresIn < 0 {
		return nil, fmt.Errorf("%w: expires_in must not be negative", domain.ErrInvalidArgument)
	}

	expiresIn := req.ExpiresIn
	if expiresIn == 0 {
		expiresIn = s.cfg.DefaultExpiry
	}
	options := req.Options
	if len(options) == 0 {
		options = s.cfg.DefaultOptions
	}

	now := s.now()
	m := &domain.Market{
		ID:        id,
		Subject:   subject,
		Question:  question,
		Options:   append([]string(nil), options...),
		Pools:     domain.Pools{Yes: decimal.Zero, No: decimal.Zero},
		Status:    domain.StatusOpen,
		CreatedAt: now,
		ExpiresAt: now.Add(expiresIn),
	}

	entry := &marketEntry{}
	entry.snap.Store(m)

	s.regMu.Lock()
	if _, exists := s.markets[id]; exists {
		s.regMu.Unlock()
		return nil, fmt.Errorf("%w: market %s already exists", domain.ErrInvalidArgument, id)
	}
	if s.journal != nil {
		if err := s.journal.SaveMarket(ctx, len(s.order), m); err != nil {
			s.regMu.Unlock()
			return nil, fmt.Errorf("journal: %w", err)
		}
	}
	s.markets[id] = entry
	s.order = append(s.order, entry)
	s.publish(domain.EventMarketCreated, m, nil, nil)
	s.regMu.Unlock()

	s.log.Info("market created", "market_id", id, "symbol", subject, "expires_at", m.ExpiresAt)
	return m.Clone(), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceStake
// ──────────────────────────────────────────────────────────────────────────────

// PlaceStake records a stake on an open market and returns the entry odds
// right after it.
//
// Checks run in a fixed order: unknown market, then closed market, then the
// request arguments. The open check is repeated under the market lock.
func (s *LedgerService) PlaceStake(ctx context.Context, req domain.PlaceStakeRequest) (*domain.StakeReceipt, error) {
	// ── 1. Existence, status, then input validation ──────────────────────────
	entry, ok := s.entry(req.MarketID)
	if !ok {
		return nil, fmt.Errorf("ledger_service.PlaceStake: %w", domain.ErrMarketNotFound)
	}
	if !entry.snap.Load().IsOpen() {
		return nil, fmt.Errorf("ledger_service.PlaceStake: %w", domain.ErrMarketClosed)
	}
	v, err := req.Validate()
	if err != nil {
		return nil, fmt.Errorf("ledger_service.PlaceStake: %w", err)
	}

	confidence := s.cfg.DefaultConfidence
	if v.Confidence != nil {
		confidence = *v.Confidence
	}
	st := domain.Stake{
		ID:         uuid.NewString(),
		AgentID:    v.AgentID,
		Position:   v.Position,
		Amount:     v.Amount,
		Confidence: confidence,
		Reasoning:  v.Reasoning,
		Timestamp:  s.now(),
	}

	// ── 2. Locked read-modify-write ──────────────────────────────────────────
	entry.mu.Lock()
	cur := entry.snap.Load()
	if !cur.IsOpen() {
		entry.mu.Unlock()
		return nil, fmt.Errorf("ledger_service.PlaceStake: %w", domain.ErrMarketClosed)
	}
	if s.journal != nil {
		if err := s.journal.AppendStake(ctx, cur.ID, len(cur.Stakes), st); err != nil {
			entry.mu.Unlock()
			return nil, fmt.Errorf("ledger_service.PlaceStake: journal: %w", err)
		}
	}
	next := cur.WithStake(st)
	entry.snap.Store(next)

	s.idxMu.Lock()
	s.byAgent[st.AgentID] = append(s.byAgent[st.AgentID], domain.AgentStake{MarketID: cur.ID, Stake: st})
	s.idxMu.Unlock()

	// ── 3. Queue the broadcast before releasing the market ───────────────────
	s.publish(domain.EventStakePlaced, next, &st, nil)
	entry.mu.Unlock()

	return &domain.StakeReceipt{
		Stake:       st,
		CurrentOdds: next.EntryOddsView(),
		TotalPool:   next.TotalPool(),
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// GetMarket returns a market with its retrospective payout odds.
func (s *LedgerService) GetMarket(_ context.Context, id string) (*domain.MarketDetail, error) {
	m, ok := s.Snapshot(id)
	if !ok {
		return nil, fmt.Errorf("ledger_service.GetMarket: %w", domain.ErrMarketNotFound)
	}
	detail := m.ToDetail()
	return &detail, nil
}

// ListMarkets returns the markets passing filter, in creation order.
func (s *LedgerService) ListMarkets(_ context.Context, filter domain.StatusFilter) []domain.MarketSummary {
	out := make([]domain.MarketSummary, 0)
	for _, m := range s.snapshots() {
		if filter.Match(m.Status) {
			out = append(out, m.ToSummary())
		}
	}
	return out
}

// Snapshot returns the current state of a market.
func (s *LedgerService) Snapshot(id string) (*domain.Market, bool) {
	entry, ok := s.entry(id)
	if !ok {
		return nil, false
	}
	return entry.snap.Load().Clone(), true
}

// Snapshots returns every market's current state in creation order.
func (s *LedgerService) Snapshots() []*domain.Market {
	return s.snapshots()
}

// AgentHistory returns a copy of the agent's stakes in placement order.
func (s *LedgerService) AgentHistory(agentID string) []domain.AgentStake {
	s.idxMu.RLock()
	defer s.idxMu.RUnlock()
	return append([]domain.AgentStake(nil), s.byAgent[agentID]...)
}

// Agents returns every agent that has staked, sorted by id.
func (s *LedgerService) Agents() []string {
	s.idxMu.RLock()
	ids := make([]string, 0, len(s.byAgent))
	for id := range s.byAgent {
		ids = append(ids, id)
	}
	s.idxMu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Stats aggregates counts across the whole ledger.
func (s *LedgerService) Stats() domain.LedgerStats {
	stats := domain.LedgerStats{TotalVolume: decimal.Zero}
	for _, m := range s.snapshots() {
		if m.IsOpen() {
			stats.OpenMarkets++
		} else {
			stats.ResolvedMarkets++
		}
		stats.Stakes += len(m.Stakes)
		stats.TotalVolume = stats.TotalVolume.Add(m.TotalPool())
	}
	s.idxMu.RLock()
	stats.Agents = len(s.byAgent)
	s.idxMu.RUnlock()
	return stats
}

// ──────────────────────────────────────────────────────────────────────────────
// ResolveMarket
// ──────────────────────────────────────────────────────────────────────────────

// ResolveMarket fixes a market's outcome exactly once and returns the payout
// schedule for the winning stakes.
func (s *LedgerService) ResolveMarket(ctx context.Context, req domain.ResolveRequest) (*domain.Settlement, error) {
	entry, ok := s.entry(req.MarketID)
	if !ok {
		return nil, fmt.Errorf("ledger_service.ResolveMarket: %w", domain.ErrMarketNotFound)
	}
	outcome, err := domain.ParseSide(req.Outcome)
	if err != nil {
		return nil, fmt.Errorf("ledger_service.ResolveMarket: %w", err)
	}

	entry.mu.Lock()
	cur := entry.snap.Load()
	if cur.IsResolved() {
		entry.mu.Unlock()
		return nil, fmt.Errorf("ledger_service.ResolveMarket: %w", domain.ErrMarketAlreadyResolved)
	}
	r := domain.Resolution{
		Outcome:           outcome,
		PriceAtResolution: req.PriceAtResolution,
		ResolvedAt:        s.now(),
	}
	if s.journal != nil {
		if err := s.journal.SaveResolution(ctx, cur.ID, r); err != nil {
			entry.mu.Unlock()
			return nil, fmt.Errorf("ledger_service.ResolveMarket: journal: %w", err)
		}
	}
	next := cur.Resolve(r)
	entry.snap.Store(next)
	payouts := domain.ComputePayouts(next)
	s.publish(domain.EventMarketResolved, next, nil, payouts)
	entry.mu.Unlock()

	s.log.Info("market resolved",
		"market_id", next.ID,
		"outcome", outcome,
		"total_pool", next.TotalPool().String(),
		"winners", len(payouts),
		"paid", domain.TotalPaid(payouts).String(),
	)

	return &domain.Settlement{Market: next.Clone(), Payouts: payouts}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Restore & seed
// ──────────────────────────────────────────────────────────────────────────────

// Restore replays the journal into memory. Markets already present are left
// alone. Agent histories are rebuilt in stake timestamp order across markets.
// A no-op without a journal.
func (s *LedgerService) Restore(ctx context.Context) error {
	if s.journal == nil {
		return nil
	}
	markets, err := s.journal.LoadMarkets(ctx)
	if err != nil {
		return fmt.Errorf("ledger_service.Restore: %w", err)
	}

	restored := 0
	var replay []domain.AgentStake
	s.regMu.Lock()
	for _, m := range markets {
		if _, exists := s.markets[m.ID]; exists {
			continue
		}
		entry := &marketEntry{}
		entry.snap.Store(m)
		s.markets[m.ID] = entry
		s.order = append(s.order, entry)
		for _, st := range m.Stakes {
			replay = append(replay, domain.AgentStake{MarketID: m.ID, Stake: st})
		}
		restored++
	}

	// Ties keep journal order: market creation order, then stake sequence.
	sort.SliceStable(replay, func(i, j int) bool {
		return replay[i].Stake.Timestamp.Before(replay[j].Stake.Timestamp)
	})
	s.idxMu.Lock()
	for _, as := range replay {
		s.byAgent[as.Stake.AgentID] = append(s.byAgent[as.Stake.AgentID], as)
	}
	s.idxMu.Unlock()
	s.regMu.Unlock()

	s.log.Info("ledger restored from journal", "markets", restored)
	return nil
}

// SeedDemo creates the demo market and its three sample stakes through the
// normal placement path. Does nothing if the demo market already exists.
func (s *LedgerService) SeedDemo(ctx context.Context) error {
	if _, ok := s.entry(DemoMarketID); ok {
		return nil
	}
	_, err := s.createMarket(ctx, DemoMarketID, domain.CreateMarketRequest{
		Subject:  "WOJAK",
		Question: "Will WOJAK reach $1M mcap in 24h?",
		Options:  []string{"YES - Moon 🚀", "NO - Dump 💀"},
	})
	if err != nil {
		return fmt.Errorf("ledger_service.SeedDemo: %w", err)
	}

	demo := []struct {
		agent      string
		position   string
		amount     int64
		confidence int
		reasoning  string
	}{
		{"meme-hunter", "yes", 200, 75, "Dev is based, community strong"},
		{"rug-detector", "no", 150, 60, "Wallet distribution sus"},
		{"degen-ai", "yes", 300, 90, "YOLO"},
	}
	for _, d := range demo {
		amount := decimal.NewFromInt(d.amount)
		confidence := d.confidence
		if _, err := s.PlaceStake(ctx, domain.PlaceStakeRequest{
			MarketID:   DemoMarketID,
			AgentID:    d.agent,
			Position:   d.position,
			Amount:     &amount,
			Confidence: &confidence,
			Reasoning:  d.reasoning,
		}); err != nil {
			return fmt.Errorf("ledger_service.SeedDemo: %w", err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────────────────────────────────

func (s *LedgerService) entry(id string) (*marketEntry, bool) {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	e, ok := s.markets[id]
	return e, ok
}

func (s *LedgerService) snapshots() []*domain.Market {
	s.regMu.RLock()
	entries := append([]*marketEntry(nil), s.order...)
	s.regMu.RUnlock()

	out := make([]*domain.Market, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snap.Load().Clone())
	}
	return out
}

// publish queues a committed change for the dispatcher. Callers hold the lock
// that committed the change, so the queue order is the commit order. Never
// blocks: a full queue drops the event with a warning.
func (s *LedgerService) publish(t domain.EventType, m *domain.Market, st *domain.Stake, payouts []domain.Payout) {
	if s.broadcaster.Load() == nil {
		return
	}
	ev := domain.MarketEvent{
		Type:      t,
		Market:    m.ToSummary(),
		Stake:     st,
		Payouts:   payouts,
		Timestamp: s.now(),
	}
	if st != nil {
		odds := m.EntryOddsView()
		ev.EntryOdds = &odds
	}
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event queue full, dropping event", "event", t, "market_id", m.ID)
	}
}

// dispatch delivers queued events one at a time until Close.
func (s *LedgerService) dispatch() {
	for {
		select {
		case ev := <-s.events:
			s.deliver(ev)
		case <-s.done:
			return
		}
	}
}

// deliver hands one event to the current broadcaster. A panicking sink is
// logged and never stops the dispatcher.
func (s *LedgerService) deliver(ev domain.MarketEvent) {
	ref := s.broadcaster.Load()
	if ref == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("broadcast panic", "event", ev.Type, "market_id", ev.Market.ID, "panic", r)
		}
	}()
	ref.b.BroadcastMarketEvent(ev)
}

// newMarketID returns 16 CSPRNG bytes, hex encoded.
func newMarketID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
