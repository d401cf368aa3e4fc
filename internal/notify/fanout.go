package notify

import (
	"log/slog"

	"github.com/evetabi/memeoracle/internal/domain"
)

// Sink receives ledger events. ws.Hub and RedisPublisher both satisfy it.
type Sink interface {
	BroadcastMarketEvent(ev domain.MarketEvent)
}

// Fanout delivers each event to every sink in order. A panicking sink is
// logged and skipped so the rest still receive the event.
type Fanout struct {
	sinks []Sink
	log   *slog.Logger
}

// NewFanout creates a Fanout over the non-nil sinks.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fanout{log: logger}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Len returns the number of attached sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// BroadcastMarketEvent satisfies service.Broadcaster.
func (f *Fanout) BroadcastMarketEvent(ev domain.MarketEvent) {
	for _, s := range f.sinks {
		f.deliver(s, ev)
	}
}

func (f *Fanout) deliver(s Sink, ev domain.MarketEvent) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("event sink panic", "event", ev.Type, "panic", r)
		}
	}()
	s.BroadcastMarketEvent(ev)
}
