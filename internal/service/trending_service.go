package service

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/shopspring/decimal"
)

// sampleCoin is a static trending entry; LaunchTime is computed relative to
// the moment the list is served.
type sampleCoin struct {
	symbol, name, mint string
	age                time.Duration
	mcap, volume       int64
	holders            int
	change1h, risk     string
	sentiment          string
}

var sampleTrending = []sampleCoin{
	{"WOJAK", "Wojak Coin", "WojakXXX111111111111111111111111111111111", time.Hour, 45000, 12000, 234, "125.5", "8.5", "bullish"},
	{"GIGA", "Giga Chad", "GigaXXX2222222222222222222222222222222222", 2 * time.Hour, 120000, 45000, 567, "45.2", "6.2", "very_bullish"},
	{"RUGGED", "Definitely Not Rug", "RugXXX33333333333333333333333333333333333", 30 * time.Minute, 8000, 3000, 45, "500.0", "9.8", "extreme_fomo"},
	{"CATWIF", "Cat Wif Laser Eyes", "CatXXX444444444444444444444444444444444444", 4 * time.Hour, 350000, 89000, 1234, "12.3", "4.5", "stable_bullish"},
}

// TrendingService serves simulated launchpad data and remembers every coin it
// has served as "tracked".
type TrendingService struct {
	now func() time.Time

	mu      sync.RWMutex
	tracked map[string]domain.Coin
}

// NewTrendingService creates a TrendingService with an empty tracked set.
func NewTrendingService() *TrendingService {
	return &TrendingService{
		now:     func() time.Time { return time.Now().UTC() },
		tracked: make(map[string]domain.Coin),
	}
}

// Trending returns the sample list and records each coin as tracked.
func (s *TrendingService) Trending() []domain.Coin {
	now := s.now()
	coins := make([]domain.Coin, 0, len(sampleTrending))
	for _, c := range sampleTrending {
		coins = append(coins, c.toDomain(now))
	}

	s.mu.Lock()
	for _, c := range coins {
		s.tracked[c.Symbol] = c
	}
	s.mu.Unlock()
	return coins
}

// Coin looks a symbol up among tracked coins, then the sample list.
func (s *TrendingService) Coin(symbol string) (domain.Coin, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	s.mu.RLock()
	c, ok := s.tracked[symbol]
	s.mu.RUnlock()
	if ok {
		return c, true
	}
	for _, sc := range sampleTrending {
		if sc.symbol == symbol {
			return sc.toDomain(s.now()), true
		}
	}
	return domain.Coin{}, false
}

// Tracked returns every tracked coin sorted by symbol.
func (s *TrendingService) Tracked() []domain.Coin {
	s.mu.RLock()
	out := make([]domain.Coin, 0, len(s.tracked))
	for _, c := range s.tracked {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// TrackedCount returns the number of distinct tracked coins.
func (s *TrendingService) TrackedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracked)
}

func (c sampleCoin) toDomain(now time.Time) domain.Coin {
	return domain.Coin{
		Symbol:        c.symbol,
		Name:          c.name,
		Mint:          c.mint,
		LaunchTime:    now.Add(-c.age),
		CurrentMcap:   decimal.NewFromInt(c.mcap),
		Holders:       c.holders,
		Volume24h:     decimal.NewFromInt(c.volume),
		PriceChange1h: decimal.RequireFromString(c.change1h),
		Sentiment:     c.sentiment,
		RiskScore:     decimal.RequireFromString(c.risk),
	}
}
