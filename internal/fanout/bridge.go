package fanout

import (
	"context"
	"sync"

	"bidding-gateway/internal/metrics"
	"bidding-gateway/utils"

	log "github.com/sirupsen/logrus"
)

// Bridge is the Bus used by the rest of the service. Local subscribers are always served
// first from the in-process bus; when a remote transport is configured every event is also
// replicated to other instances, and events coming back from this instance are dropped.
type Bridge struct {
	instanceID string
	local      *LocalBus
	remote     Bus
	metrics    *metrics.Metrics
	logger     *log.Entry

	mu     sync.Mutex
	unsubs []func()
}

// NewBridge creates a bridge; remote may be nil for single-instance deployments
func NewBridge(instanceID string, local *LocalBus, remote Bus, m *metrics.Metrics) *Bridge {
	return &Bridge{
		instanceID: instanceID,
		local:      local,
		remote:     remote,
		metrics:    m,
		logger:     utils.Component("fanout").WithField("instance_id", instanceID),
	}
}

// InstanceID identifies this process on the bus
func (b *Bridge) InstanceID() string {
	return b.instanceID
}

// Publish delivers e locally and then, best effort, to other instances
func (b *Bridge) Publish(ctx context.Context, channel string, e Event) error {
	if e.InstanceID == "" {
		e.InstanceID = b.instanceID
	}
	if e.Type == "" {
		e.Type = channel
	}

	if err := b.local.Publish(ctx, channel, e); err != nil {
		return err
	}
	b.metrics.FanoutPublished(channel)

	if b.remote == nil {
		return nil
	}
	if err := b.remote.Publish(ctx, channel, e); err != nil {
		b.metrics.FanoutFailed(channel)
		b.logger.WithError(err).WithFields(log.Fields{
			"channel":    channel,
			"auction_id": e.AuctionID,
		}).Warn("cross-instance publish failed")
	}
	return nil
}

// Subscribe registers a local handler; it also receives events replicated from other instances
func (b *Bridge) Subscribe(channel string, h Handler) (func(), error) {
	return b.local.Subscribe(channel, h)
}

// Start relays the given channels from the remote transport into the local bus
func (b *Bridge) Start(channels ...string) error {
	if b.remote == nil {
		return nil
	}

	for _, ch := range channels {
		ch := ch
		unsub, err := b.remote.Subscribe(ch, func(ctx context.Context, e Event) {
			if e.InstanceID == b.instanceID {
				return
			}
			if err := b.local.Publish(ctx, ch, e); err != nil {
				b.logger.WithError(err).WithField("channel", ch).Warn("relaying remote event failed")
			}
		})
		if err != nil {
			b.Close()
			return err
		}

		b.mu.Lock()
		b.unsubs = append(b.unsubs, unsub)
		b.mu.Unlock()
	}

	b.logger.WithField("channels", channels).Info("cross-instance relay started")
	return nil
}

// Close stops relaying remote events
func (b *Bridge) Close() {
	b.mu.Lock()
	unsubs := b.unsubs
	b.unsubs = nil
	b.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}
