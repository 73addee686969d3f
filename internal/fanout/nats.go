package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bidding-gateway/internal/biddingerrors"
	"bidding-gateway/internal/metrics"
	"bidding-gateway/utils"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NATSConfig configures the cross-instance transport
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	PingInterval  time.Duration
}

// NATSBus publishes events as JSON on "<prefix>.<channel>" subjects
type NATSBus struct {
	conn    *nats.Conn
	prefix  string
	metrics *metrics.Metrics
	logger  *log.Entry

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSBus connects to NATS and returns a bus bound to the connection
func NewNATSBus(cfg NATSConfig, m *metrics.Metrics) (*NATSBus, error) {
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 20 * time.Second
	}

	b := &NATSBus{
		prefix:  cfg.SubjectPrefix,
		metrics: m,
		logger:  utils.Component("fanout.nats"),
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.PingInterval(cfg.PingInterval),
		nats.ConnectHandler(b.connectHandler),
		nats.DisconnectErrHandler(b.disconnectHandler),
		nats.ReconnectHandler(b.reconnectHandler),
		nats.ErrorHandler(b.errorHandler),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("fanout: failed to connect to NATS: %w", err)
	}
	b.conn = conn
	m.SetFanoutConnected(true)
	b.logger.WithField("url", conn.ConnectedUrl()).Info("connected to NATS")

	return b, nil
}

func (b *NATSBus) connectHandler(conn *nats.Conn) {
	b.logger.WithField("url", conn.ConnectedUrl()).Info("NATS connected")
	b.metrics.SetFanoutConnected(true)
}

func (b *NATSBus) disconnectHandler(_ *nats.Conn, err error) {
	entry := b.logger
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("NATS disconnected")
	b.metrics.SetFanoutConnected(false)
}

func (b *NATSBus) reconnectHandler(conn *nats.Conn) {
	b.logger.WithField("url", conn.ConnectedUrl()).Info("NATS reconnected")
	b.metrics.SetFanoutConnected(true)
}

func (b *NATSBus) errorHandler(_ *nats.Conn, sub *nats.Subscription, err error) {
	entry := b.logger.WithError(err)
	if sub != nil {
		entry = entry.WithField("subject", sub.Subject)
	}
	entry.Error("NATS error")
}

// Subject returns the NATS subject used for channel
func Subject(prefix, channel string) string {
	if prefix == "" {
		return channel
	}
	return prefix + "." + channel
}

// Publish sends e on the channel's subject
func (b *NATSBus) Publish(_ context.Context, channel string, e Event) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("fanout: publish %s: %w", channel, biddingerrors.ErrPublishUnavailable)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("fanout: encode %s event: %w", channel, err)
	}
	if err := b.conn.Publish(Subject(b.prefix, channel), data); err != nil {
		return fmt.Errorf("fanout: publish %s: %w: %w", channel, biddingerrors.ErrPublishUnavailable, err)
	}
	return nil
}

// Subscribe delivers decoded events from the channel's subject to h
func (b *NATSBus) Subscribe(channel string, h Handler) (func(), error) {
	subject := Subject(b.prefix, channel)
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			b.logger.WithError(err).WithField("subject", msg.Subject).Warn("dropping undecodable event")
			return
		}
		deliver(context.Background(), channel, e, h)
	})
	if err != nil {
		return nil, fmt.Errorf("fanout: failed to subscribe to %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.WithField("subject", subject).Info("subscribed to NATS subject")
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.WithError(err).WithField("subject", subject).Warn("unsubscribe failed")
		}
	}, nil
}

// Close drains subscriptions and closes the connection
func (b *NATSBus) Close() {
	if b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.logger.WithError(err).Warn("NATS drain failed")
		b.conn.Close()
	}
	b.metrics.SetFanoutConnected(false)
}
