// Package scheduler runs the background goroutines that push ledger state to
// live subscribers:
//  1. oddsBroadcastLoop – pushes pool and payout odds of open markets.
//  2. expiryNoticeLoop  – announces, once, that an open market is past expiry.
//
// Neither loop mutates the ledger; both only read snapshots.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/evetabi/memeoracle/internal/config"
	"github.com/evetabi/memeoracle/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces
// ──────────────────────────────────────────────────────────────────────────────

// MarketSource is the read-only ledger view the scheduler needs.
// Implemented by service.LedgerService.
type MarketSource interface {
	Snapshots() []*domain.Market
}

// Broadcaster receives the scheduler's notices. Declared here so the
// scheduler package does not import the ws or notify implementations.
type Broadcaster interface {
	BroadcastMarketEvent(ev domain.MarketEvent)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler runs the notice loops. Call Start(ctx) once from main(); cancel
// the context to shut it down gracefully.
type Scheduler struct {
	markets MarketSource
	out     Broadcaster
	cfg     config.SchedulerConfig
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	notified map[string]bool // market ids already announced as expired
}

// NewScheduler creates a Scheduler.
func NewScheduler(markets MarketSource, out Broadcaster, cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		markets:  markets,
		out:      out,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		notified: make(map[string]bool),
	}
}

// Start launches the background goroutines. It returns immediately; all loops
// run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.oddsBroadcastLoop(ctx)
	go s.expiryNoticeLoop(ctx)
	s.logger.Info("scheduler started",
		"odds_interval", s.cfg.OddsInterval, "expiry_interval", s.cfg.ExpiryInterval)
}

// ──────────────────────────────────────────────────────────────────────────────
// oddsBroadcastLoop
// ──────────────────────────────────────────────────────────────────────────────

// oddsBroadcastLoop pushes an odds_update for every open market each tick.
func (s *Scheduler) oddsBroadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.OddsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("oddsBroadcastLoop: shutting down")
			return
		case <-ticker.C:
			s.tick("oddsBroadcastLoop", func() { s.broadcastOdds() })
		}
	}
}

// broadcastOdds is the inner body of oddsBroadcastLoop. Returns the number of
// updates sent.
func (s *Scheduler) broadcastOdds() int {
	now := s.now()
	sent := 0
	for _, m := range s.markets.Snapshots() {
		if !m.IsOpen() {
			continue
		}
		s.out.BroadcastMarketEvent(domain.MarketEvent{
			Type:      domain.EventOddsUpdate,
			Market:    m.ToSummary(),
			Timestamp: now,
		})
		sent++
	}
	return sent
}

// ──────────────────────────────────────────────────────────────────────────────
// expiryNoticeLoop
// ──────────────────────────────────────────────────────────────────────────────

// expiryNoticeLoop announces markets that have passed their expiry but are
// still open. Markets are never closed here; resolution stays explicit.
func (s *Scheduler) expiryNoticeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ExpiryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiryNoticeLoop: shutting down")
			return
		case <-ticker.C:
			s.tick("expiryNoticeLoop", func() { s.noticeExpired() })
		}
	}
}

// noticeExpired emits market_expired at most once per market. Returns the
// ids announced on this pass.
func (s *Scheduler) noticeExpired() []string {
	now := s.now()
	var announced []string
	for _, m := range s.markets.Snapshots() {
		if !m.IsOpen() || !m.IsExpired(now) {
			continue
		}
		s.mu.Lock()
		seen := s.notified[m.ID]
		s.notified[m.ID] = true
		s.mu.Unlock()
		if seen {
			continue
		}

		s.out.BroadcastMarketEvent(domain.MarketEvent{
			Type:      domain.EventMarketExpired,
			Market:    m.ToSummary(),
			Timestamp: now,
		})
		s.logger.Info("market past expiry, awaiting resolution", "market_id", m.ID, "expires_at", m.ExpiresAt)
		announced = append(announced, m.ID)
	}
	return announced
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// tick runs one pass of a loop. A panic ends that pass only; the loop keeps
// its ticker and runs again on the next tick.
func (s *Scheduler) tick(loop string, fn func()) {
	defer s.recoverAndLog(loop)
	fn()
}

// recoverAndLog is deferred around each tick to catch unexpected panics and
// log them.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
