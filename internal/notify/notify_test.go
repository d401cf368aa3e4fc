package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu       sync.Mutex
	channel  string
	payloads [][]byte
	err      error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.channel = channel
	f.payloads = append(f.payloads, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Close() error { return nil }

func resolvedEvent() domain.MarketEvent {
	m := &domain.Market{ID: "m1", Subject: "WOJAK", Status: domain.StatusOpen}
	m = m.Resolve(domain.Resolution{Outcome: domain.SideYes, ResolvedAt: time.Unix(0, 0).UTC()})
	return domain.MarketEvent{Type: domain.EventMarketResolved, Market: m.ToSummary(), Timestamp: time.Unix(1, 0).UTC()}
}

func TestRedisPublisherEncodesEvent(t *testing.T) {
	fake := &fakeRedis{}
	p := newRedisPublisher(fake, "oracle:events", nil)

	p.BroadcastMarketEvent(resolvedEvent())

	require.Len(t, fake.payloads, 1)
	assert.Equal(t, "oracle:events", fake.channel)

	var got map[string]any
	require.NoError(t, json.Unmarshal(fake.payloads[0], &got))
	assert.Equal(t, "market_resolved", got["type"])
	market := got["market"].(map[string]any)
	assert.Equal(t, "m1", market["id"])
	assert.Equal(t, "resolved", market["status"])
}

func TestRedisPublisherError(t *testing.T) {
	fake := &fakeRedis{err: errors.New("connection refused")}
	p := newRedisPublisher(fake, "oracle:events", nil)

	err := p.Publish(context.Background(), resolvedEvent())
	assert.ErrorContains(t, err, "connection refused")

	// The Broadcaster path swallows the error.
	p.BroadcastMarketEvent(resolvedEvent())
}

func TestNewRedisPublisherBadURL(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), "not-a-url", "c", nil)
	assert.Error(t, err)
}

type countingSink struct{ n int }

func (c *countingSink) BroadcastMarketEvent(domain.MarketEvent) { c.n++ }

type panickingSink struct{}

func (panickingSink) BroadcastMarketEvent(domain.MarketEvent) { panic("boom") }

func TestFanoutDeliversPastPanics(t *testing.T) {
	first, last := &countingSink{}, &countingSink{}
	f := NewFanout(nil, first, panickingSink{}, nil, last)
	assert.Equal(t, 3, f.Len())

	f.BroadcastMarketEvent(resolvedEvent())
	assert.Equal(t, 1, first.n)
	assert.Equal(t, 1, last.n)
}
