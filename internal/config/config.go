// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        // e.g. "3000"
	BackofficePort       string        // e.g. "3001"; "" disables the back-office listener
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration // default 10s
	WriteTimeout         time.Duration // default 10s
	BackofficeAllowedIPs string        // comma-separated IPs; "" = allow all
	AllowedOrigins       []string      // production CORS and websocket origins
}

// StorageConfig selects and configures the optional ledger journal.
type StorageConfig struct {
	Driver          string        // memory | postgres | sqlite
	DSN             string        // driver-specific DSN; sqlite accepts a file path or ":memory:"
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// LedgerConfig holds market defaults.
type LedgerConfig struct {
	DefaultExpiry     time.Duration // default 24h
	DefaultOptions    []string      // default ["YES - Moon 🚀", "NO - Rug 💀"]
	DefaultConfidence int           // default 50
	SeedDemo          bool          // create the demo market at boot; on unless LEDGER_SEED_DEMO=false
}

// ScorecardConfig holds agent scoring settings.
type ScorecardConfig struct {
	FeeRate         float64 // flat house edge in the profit estimate, e.g. 0.10 = 10%
	LeaderboardSize int     // default 20
}

// CommentaryConfig holds the LLM commentary client settings.
type CommentaryConfig struct {
	BaseURL   string        // API root; the client appends /v1/messages
	APIKey    string        // "" disables commentary
	Model     string        // model name sent with each request
	MaxTokens int           // default 1024
	Timeout   time.Duration // default 20s
}

// Enabled returns true when an API key is configured.
func (c CommentaryConfig) Enabled() bool {
	return c.APIKey != ""
}

// RedisConfig holds the optional event publisher settings.
type RedisConfig struct {
	URL     string // e.g. "redis://localhost:6379/0"; "" disables publishing
	Channel string // default "oracle:events"
}

// SchedulerConfig holds background loop intervals.
type SchedulerConfig struct {
	OddsInterval   time.Duration // default 5s
	ExpiryInterval time.Duration // default 30s
}

// RateLimitConfig holds the per-IP stake placement limiter settings.
type RateLimitConfig struct {
	PerSecond float64 // token refill rate, default 5
	Burst     int     // bucket size, default 10
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Ledger     LedgerConfig
	Scorecard  ScorecardConfig
	Commentary CommentaryConfig
	Redis      RedisConfig
	Scheduler  SchedulerConfig
	RateLimit  RateLimitConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("STORAGE_DSN must be set for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"STORAGE_DRIVER must be one of memory|postgres|sqlite, got %q", c.Storage.Driver,
		))
	}

	if c.Ledger.DefaultExpiry <= 0 {
		errs = append(errs, fmt.Errorf("LEDGER_DEFAULT_EXPIRY must be positive, got %s", c.Ledger.DefaultExpiry))
	}
	if len(c.Ledger.DefaultOptions) != 2 {
		errs = append(errs, fmt.Errorf(
			"LEDGER_DEFAULT_OPTIONS must name exactly two options, got %d", len(c.Ledger.DefaultOptions),
		))
	}
	if c.Ledger.DefaultConfidence < 0 || c.Ledger.DefaultConfidence > 100 {
		errs = append(errs, fmt.Errorf(
			"LEDGER_DEFAULT_CONFIDENCE must be between 0 and 100, got %d", c.Ledger.DefaultConfidence,
		))
	}

	if c.Scorecard.FeeRate < 0 || c.Scorecard.FeeRate >= 1 {
		errs = append(errs, fmt.Errorf(
			"SCORECARD_FEE_RATE must be in [0, 1), got %.4f", c.Scorecard.FeeRate,
		))
	}
	if c.Scorecard.LeaderboardSize <= 0 {
		errs = append(errs, errors.New("SCORECARD_LEADERBOARD_SIZE must be positive"))
	}

	if c.Commentary.Enabled() && c.Commentary.BaseURL == "" {
		errs = append(errs, errors.New("COMMENTARY_BASE_URL must be set when COMMENTARY_API_KEY is"))
	}
	if c.Redis.URL != "" && c.Redis.Channel == "" {
		errs = append(errs, errors.New("REDIS_CHANNEL must not be empty"))
	}

	if c.Scheduler.OddsInterval <= 0 || c.Scheduler.ExpiryInterval <= 0 {
		errs = append(errs, errors.New("scheduler intervals must be positive"))
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_SECOND and RATE_LIMIT_BURST must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables
// (and a .env file in the working directory, if present).
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		// A missing .env is normal outside development.
		_ = godotenv.Load()
		instance, loadErr = Load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Loader
// ──────────────────────────────────────────────────────────────────────────────

// Load reads a fresh Config from the current environment without touching the
// singleton.
func Load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "3000"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "3001"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
		AllowedOrigins:       getCSV("CORS_ALLOWED_ORIGINS"),
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	maxOpen, err := getInt("STORAGE_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("STORAGE_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("STORAGE_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("STORAGE_MAX_IDLE_CONNS: %w", err)
	}

	cfg.Storage = StorageConfig{
		Driver:          strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
		DSN:             getEnv("STORAGE_DSN", ""),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("STORAGE_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── Ledger ────────────────────────────────────────────────────────────────
	confidence, err := getInt("LEDGER_DEFAULT_CONFIDENCE", 50)
	if err != nil {
		return nil, fmt.Errorf("LEDGER_DEFAULT_CONFIDENCE: %w", err)
	}
	seed, err := getBool("LEDGER_SEED_DEMO", true)
	if err != nil {
		return nil, fmt.Errorf("LEDGER_SEED_DEMO: %w", err)
	}

	cfg.Ledger = LedgerConfig{
		DefaultExpiry:     getDuration("LEDGER_DEFAULT_EXPIRY", 24*time.Hour),
		DefaultOptions:    getList("LEDGER_DEFAULT_OPTIONS", []string{"YES - Moon 🚀", "NO - Rug 💀"}),
		DefaultConfidence: confidence,
		SeedDemo:          seed,
	}

	// ── Scorecard ─────────────────────────────────────────────────────────────
	feeRate, err := getFloat("SCORECARD_FEE_RATE", 0.10)
	if err != nil {
		return nil, fmt.Errorf("SCORECARD_FEE_RATE: %w", err)
	}
	boardSize, err := getInt("SCORECARD_LEADERBOARD_SIZE", 20)
	if err != nil {
		return nil, fmt.Errorf("SCORECARD_LEADERBOARD_SIZE: %w", err)
	}

	cfg.Scorecard = ScorecardConfig{
		FeeRate:         feeRate,
		LeaderboardSize: boardSize,
	}

	// ── Commentary ────────────────────────────────────────────────────────────
	maxTokens, err := getInt("COMMENTARY_MAX_TOKENS", 1024)
	if err != nil {
		return nil, fmt.Errorf("COMMENTARY_MAX_TOKENS: %w", err)
	}

	cfg.Commentary = CommentaryConfig{
		BaseURL:   getEnv("COMMENTARY_BASE_URL", "https://api.anthropic.com/"),
		APIKey:    getEnv("COMMENTARY_API_KEY", ""),
		Model:     getEnv("COMMENTARY_MODEL", "claude-sonnet-4-20250514"),
		MaxTokens: maxTokens,
		Timeout:   getDuration("COMMENTARY_TIMEOUT", 20*time.Second),
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	cfg.Redis = RedisConfig{
		URL:     getEnv("REDIS_URL", ""),
		Channel: getEnv("REDIS_CHANNEL", "oracle:events"),
	}

	// ── Scheduler ─────────────────────────────────────────────────────────────
	cfg.Scheduler = SchedulerConfig{
		OddsInterval:   getDuration("SCHEDULER_ODDS_INTERVAL", 5*time.Second),
		ExpiryInterval: getDuration("SCHEDULER_EXPIRY_INTERVAL", 30*time.Second),
	}

	// ── Rate limit ────────────────────────────────────────────────────────────
	rps, err := getFloat("RATE_LIMIT_PER_SECOND", 5)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_PER_SECOND: %w", err)
	}
	burst, err := getInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_BURST: %w", err)
	}

	cfg.RateLimit = RateLimitConfig{
		PerSecond: rps,
		Burst:     burst,
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool %q", v)
	}
	return b, nil
}

// getList splits a "|"-separated env var, trimming blanks. Commas are common in
// option text, so they are not used as the separator.
func getList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), defaultVal...)
	}
	var out []string
	for _, part := range strings.Split(v, "|") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getCSV splits a comma-separated env var, trimming blanks. Unset yields nil.
func getCSV(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Log warning and fall back to default; do not crash on parse error
		return defaultVal
	}
	return d
}
