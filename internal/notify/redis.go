// Package notify fans ledger events out to downstream consumers: the
// websocket hub and an optional Redis pub/sub channel that outside
// collaborators (commentary bots, dashboards) can subscribe to.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// publisher is the subset of *redis.Client the publisher uses.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisPublisher publishes every ledger event as JSON on one pub/sub channel.
type RedisPublisher struct {
	rdb     publisher
	channel string
	log     *slog.Logger
}

// NewRedisPublisher connects to url (redis://[:password@]host:port/db),
// verifies the connection, and returns a publisher for channel.
func NewRedisPublisher(ctx context.Context, url, channel string, logger *slog.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("notify: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("notify: redis ping: %w", err)
	}
	return newRedisPublisher(rdb, channel, logger), nil
}

func newRedisPublisher(rdb publisher, channel string, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{rdb: rdb, channel: channel, log: logger}
}

// BroadcastMarketEvent satisfies service.Broadcaster. Failures are logged;
// the caller is never blocked beyond publishTimeout.
func (p *RedisPublisher) BroadcastMarketEvent(ev domain.MarketEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		p.log.Warn("redis publish failed", "event", ev.Type, "market_id", ev.Market.ID, "error", err)
	}
}

// Publish encodes ev and sends it to the configured channel.
func (p *RedisPublisher) Publish(ctx context.Context, ev domain.MarketEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode %s: %w", ev.Type, err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", p.channel, err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
