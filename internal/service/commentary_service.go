package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/evetabi/memeoracle/internal/config"
	"github.com/evetabi/memeoracle/internal/domain"
)

const (
	recentStakesInCtx  = 5
	commentaryCacheTTL = 30 * time.Second
)

// CoinSource resolves a coin symbol to its sample data. Implemented by
// TrendingService.
type CoinSource interface {
	Coin(symbol string) (domain.Coin, bool)
}

// MarketReader is the read-only view of the ledger commentary is allowed.
type MarketReader interface {
	Snapshot(id string) (*domain.Market, bool)
}

// ──────────────────────────────────────────────────────────────────────────────
// CommentaryService
// ──────────────────────────────────────────────────────────────────────────────

// CommentaryService asks the Anthropic Messages API for short analysis of a
// market or a coin. It only reads snapshots and never changes ledger state.
type CommentaryService struct {
	client  anthropic.Client
	cfg     config.CommentaryConfig
	markets MarketReader
	coins   CoinSource
	log     *slog.Logger

	// cached market commentary, keyed by market id and invalidated whenever
	// the stake count moves
	mu    sync.Mutex
	cache map[string]cachedCommentary
}

type cachedCommentary struct {
	stakes int
	at     time.Time
	c      domain.Commentary
}

// NewCommentaryService creates a CommentaryService.
func NewCommentaryService(cfg config.CommentaryConfig, markets MarketReader, coins CoinSource, logger *slog.Logger) *CommentaryService {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHeader("User-Agent", "memeoracle/1.0"),
		// One attempt per request; a failed call surfaces as 503.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &CommentaryService{
		client:  anthropic.NewClient(opts...),
		cfg:     cfg,
		markets: markets,
		coins:   coins,
		log:     logger,
		cache:   make(map[string]cachedCommentary),
	}
}

// Enabled reports whether an API key is configured.
func (s *CommentaryService) Enabled() bool { return s.cfg.Enabled() }

// ──────────────────────────────────────────────────────────────────────────────
// Public API
// ──────────────────────────────────────────────────────────────────────────────

// MarketCommentary analyses a market from its current snapshot: question,
// pools, entry odds, stake count and the most recent stakes.
func (s *CommentaryService) MarketCommentary(ctx context.Context, marketID string) (*domain.Commentary, error) {
	m, ok := s.markets.Snapshot(marketID)
	if !ok {
		return nil, fmt.Errorf("commentary_service.MarketCommentary: %w", domain.ErrMarketNotFound)
	}
	if !s.Enabled() {
		return nil, fmt.Errorf("commentary_service.MarketCommentary: %w: no api key configured", domain.ErrCommentaryUnavailable)
	}

	s.mu.Lock()
	if hit, ok := s.cache[m.ID]; ok && hit.stakes == len(m.Stakes) && time.Since(hit.at) < commentaryCacheTTL {
		s.mu.Unlock()
		c := hit.c
		return &c, nil
	}
	s.mu.Unlock()

	c, err := s.generate(ctx, domain.CommentaryMarket, m.Subject, 400, marketPrompt(m))
	if err != nil {
		return nil, fmt.Errorf("commentary_service.MarketCommentary: %w", err)
	}

	s.mu.Lock()
	s.cache[m.ID] = cachedCommentary{stakes: len(m.Stakes), at: time.Now(), c: *c}
	s.mu.Unlock()
	return c, nil
}

// AnalyzeCoin gives a moon-or-rug verdict on a trending coin.
func (s *CommentaryService) AnalyzeCoin(ctx context.Context, symbol string) (*domain.Commentary, error) {
	coin, err := s.coin(symbol)
	if err != nil {
		return nil, fmt.Errorf("commentary_service.AnalyzeCoin: %w", err)
	}
	c, err := s.generate(ctx, domain.CommentaryMeme, coin.Symbol, 500, memePrompt(coin))
	if err != nil {
		return nil, fmt.Errorf("commentary_service.AnalyzeCoin: %w", err)
	}
	return c, nil
}

// RugCheck rates a trending coin SAFE, CAUTION or DANGER.
func (s *CommentaryService) RugCheck(ctx context.Context, symbol string) (*domain.Commentary, error) {
	coin, err := s.coin(symbol)
	if err != nil {
		return nil, fmt.Errorf("commentary_service.RugCheck: %w", err)
	}
	c, err := s.generate(ctx, domain.CommentaryRugCheck, coin.Symbol, 400, rugCheckPrompt(coin))
	if err != nil {
		return nil, fmt.Errorf("commentary_service.RugCheck: %w", err)
	}
	return c, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Prompts
// ──────────────────────────────────────────────────────────────────────────────

func marketPrompt(m *domain.Market) string {
	odds := m.EntryOddsView()
	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing a memecoin prediction market on Solana.\n")
	fmt.Fprintf(&b, "Question: %s\n", m.Question)
	fmt.Fprintf(&b, "Current YES pool: %s | NO pool: %s\n", m.Pools.Yes.StringFixed(2), m.Pools.No.StringFixed(2))
	fmt.Fprintf(&b, "Entry odds: YES %s | NO %s\n", odds.Yes, odds.No)
	fmt.Fprintf(&b, "Number of predictions: %d\n", len(m.Stakes))
	if recent := m.RecentStakes(recentStakesInCtx); len(recent) > 0 {
		b.WriteString("Most recent predictions:\n")
		for _, st := range recent {
			fmt.Fprintf(&b, "- %s: %s %s (confidence %d%%) %s\n",
				st.AgentID, st.Position, st.Amount.StringFixed(2), st.Confidence, st.Reasoning)
		}
	}
	b.WriteString("\nProvide AI analysis: which side has more merit? What on-chain signals support each position? " +
		"Give a brief recommendation with reasoning. Be specific about Solana memecoin patterns.")
	return b.String()
}

func memePrompt(c domain.Coin) string {
	return fmt.Sprintf(`You are the Meme Oracle, an AI expert at predicting which Solana memecoins will moon or rug. Analyze this token:
Symbol: %s, Name: %s
Market Cap: $%s, Holders: %d
24h Volume: $%s, 1h Change: %s%%
Risk Score: %s/10

Give your prediction: MOON or RUG? Include confidence %%, key risk factors, and a memecoin-style verdict. Reference pump.fun patterns and Solana DEX liquidity. Keep it punchy (3-4 sentences).`,
		c.Symbol, c.Name, c.CurrentMcap, c.Holders, c.Volume24h, c.PriceChange1h, c.RiskScore)
}

func rugCheckPrompt(c domain.Coin) string {
	return fmt.Sprintf(`Perform an AI rug-check analysis for a Solana memecoin:
Symbol: %s, Holders: %d, MCap: $%s
Volume: $%s, Risk: %s/10

Check for: concentrated holdings, low liquidity, suspicious dev wallet patterns, honeypot indicators. Give a SAFE/CAUTION/DANGER rating with explanation. Be brutally honest.`,
		c.Symbol, c.Holders, c.CurrentMcap, c.Volume24h, c.RiskScore)
}

// ──────────────────────────────────────────────────────────────────────────────
// Messages API client
// ──────────────────────────────────────────────────────────────────────────────

func (s *CommentaryService) coin(symbol string) (domain.Coin, error) {
	if s.coins == nil {
		return domain.Coin{}, fmt.Errorf("%w: unknown coin %q", domain.ErrInvalidArgument, symbol)
	}
	c, ok := s.coins.Coin(symbol)
	if !ok {
		return domain.Coin{}, fmt.Errorf("%w: unknown coin %q", domain.ErrInvalidArgument, symbol)
	}
	if !s.Enabled() {
		return domain.Coin{}, fmt.Errorf("%w: no api key configured", domain.ErrCommentaryUnavailable)
	}
	return c, nil
}

// generate sends one user message and returns the first text block. Any
// transport or upstream failure is reported as ErrCommentaryUnavailable.
func (s *CommentaryService) generate(ctx context.Context, kind domain.CommentaryKind, subject string, maxTokens int, prompt string) (*domain.Commentary, error) {
	if s.cfg.MaxTokens > 0 && maxTokens > s.cfg.MaxTokens {
		maxTokens = s.cfg.MaxTokens
	}
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		s.log.Warn("commentary request failed", "kind", kind, "subject", subject, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrCommentaryUnavailable, err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return &domain.Commentary{
				Kind:        kind,
				Subject:     subject,
				Text:        block.Text,
				Model:       s.cfg.Model,
				GeneratedAt: time.Now().UTC(),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: empty response", domain.ErrCommentaryUnavailable)
}
