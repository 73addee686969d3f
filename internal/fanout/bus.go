package fanout

import (
	"context"
	"sort"
	"sync"

	"bidding-gateway/utils"
)

// Handler receives events for one channel
type Handler func(ctx context.Context, e Event)

// Bus is a best-effort, at-most-once publish/subscribe transport
type Bus interface {
	Publish(ctx context.Context, channel string, e Event) error
	Subscribe(channel string, h Handler) (unsubscribe func(), err error)
}

// LocalBus delivers events synchronously to in-process subscribers
type LocalBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler // key: channel -> value: handlers by subscription id
}

// NewLocalBus creates an empty bus
func NewLocalBus() *LocalBus {
	return &LocalBus{
		handlers: make(map[string]map[int]Handler),
	}
}

// Publish calls every handler subscribed to channel in subscription order.
// A panicking handler is logged and does not stop delivery to the others.
func (b *LocalBus) Publish(ctx context.Context, channel string, e Event) error {
	b.mu.RLock()
	subs := b.handlers[channel]
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, subs[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(ctx, channel, e, h)
	}
	return nil
}

// Subscribe registers h for channel
func (b *LocalBus) Subscribe(channel string, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[channel] == nil {
		b.handlers[channel] = make(map[int]Handler)
	}
	b.handlers[channel][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[channel], id)
	}, nil
}

func deliver(ctx context.Context, channel string, e Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			utils.Error("fan-out handler panicked", map[string]any{
				"channel":    channel,
				"auction_id": e.AuctionID,
				"panic":      r,
			})
		}
	}()
	h(ctx, e)
}
