// Package main is the entry point for the meme-coin oracle server. It wires
// the ledger, scorecard and commentary services, starts the WebSocket hub and
// notice scheduler, and serves the public API plus the back-office API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evetabi/memeoracle/internal/api"
	"github.com/evetabi/memeoracle/internal/backoffice"
	"github.com/evetabi/memeoracle/internal/config"
	"github.com/evetabi/memeoracle/internal/notify"
	"github.com/evetabi/memeoracle/internal/repository"
	"github.com/evetabi/memeoracle/internal/scheduler"
	"github.com/evetabi/memeoracle/internal/service"
	"github.com/evetabi/memeoracle/internal/ws"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting meme-coin oracle",
		"env", cfg.Server.Env, "port", cfg.Server.Port, "storage", cfg.Storage.Driver)

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Journal (optional) ─────────────────────────────────────────────────
	var (
		db      *sqlx.DB
		journal service.Journal
	)
	if cfg.Storage.Driver != config.DriverMemory {
		var err error
		db, err = repository.Open(ctx, cfg.Storage)
		if err != nil {
			logger.Error("journal database unavailable", "err", err)
			os.Exit(1)
		}
		journal = repository.NewSQLJournal(db)
		logger.Info("journal connected", "driver", cfg.Storage.Driver)
	}

	// ── 4. Ledger ─────────────────────────────────────────────────────────────
	ledger := service.NewLedgerService(cfg.Ledger, journal, logger)
	defer ledger.Close()

	// ── 5. WebSocket Hub ──────────────────────────────────────────────────────
	var allowedOrigins []string
	if cfg.IsProd() {
		allowedOrigins = cfg.Server.AllowedOrigins
	}
	hub := ws.NewHub(allowedOrigins, logger)
	hub.SetMarketLookup(func(id string) bool {
		_, ok := ledger.Snapshot(id)
		return ok
	})
	go hub.Run(ctx)
	logger.Info("websocket hub started")

	// ── 6. Event fan-out ──────────────────────────────────────────────────────
	sinks := []notify.Sink{hub}
	var redisPub *notify.RedisPublisher
	if cfg.Redis.URL != "" {
		var err error
		redisPub, err = notify.NewRedisPublisher(ctx, cfg.Redis.URL, cfg.Redis.Channel, logger)
		if err != nil {
			logger.Warn("redis unavailable, events stay local", "err", err)
		} else {
			sinks = append(sinks, redisPub)
			logger.Info("publishing events to redis", "channel", cfg.Redis.Channel)
		}
	}
	events := notify.NewFanout(logger, sinks...)
	// Wired before the seed so the demo market is announced too.
	ledger.SetBroadcaster(events)

	// ── 7. Journal replay + demo seed ─────────────────────────────────────────
	if journal != nil {
		if err := ledger.Restore(ctx); err != nil {
			logger.Error("journal replay failed", "err", err)
			os.Exit(1)
		}
		stats := ledger.Stats()
		logger.Info("ledger restored",
			"open", stats.OpenMarkets, "resolved", stats.ResolvedMarkets, "stakes", stats.Stakes)
	}
	if cfg.Ledger.SeedDemo {
		if err := ledger.SeedDemo(ctx); err != nil {
			logger.Error("demo seed failed", "err", err)
			os.Exit(1)
		}
		logger.Info("demo market ready", "market_id", service.DemoMarketID)
	}

	// ── 8. Services ───────────────────────────────────────────────────────────
	trendingSvc := service.NewTrendingService()
	scorecardSvc := service.NewScorecardService(ledger, cfg.Scorecard.FeeRate)
	commentarySvc := service.NewCommentaryService(cfg.Commentary, ledger, trendingSvc, logger)
	if !commentarySvc.Enabled() {
		logger.Warn("COMMENTARY_API_KEY not set, commentary endpoints will return 503")
	}

	// ── 9. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(ledger, events, cfg.Scheduler, logger)
	sched.Start(ctx)

	// ── 10. HTTP servers ──────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		Ledger:     ledger,
		Scorecard:  scorecardSvc,
		Commentary: commentarySvc,
		Trending:   trendingSvc,
		Hub:        hub,
		Cfg:        cfg,
	})
	servers := []*http.Server{{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}}

	if cfg.Server.BackofficePort != "" {
		admin := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
			Ledger:    ledger,
			Scorecard: scorecardSvc,
			Hub:       hub,
			Cfg:       cfg,
		})
		servers = append(servers, &http.Server{
			Addr:         ":" + cfg.Server.BackofficePort,
			Handler:      admin,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	// ── 11. Graceful shutdown ────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, draining connections…")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http shutdown error", "addr", srv.Addr, "err", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server error", "err", err)
	}
	stop() // stops the hub and scheduler if a listener failed first

	if redisPub != nil {
		if err := redisPub.Close(); err != nil {
			logger.Error("redis close error", "err", err)
		}
	}
	if db != nil {
		db.Close()
	}
	logger.Info("server stopped cleanly")
}
