package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  *prometheus.CounterVec
	roomsActive       prometheus.Gauge
	clientEvents      *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec

	bidOutcomes        *prometheus.CounterVec
	pipelineAttempts   prometheus.Counter
	pipelineRetries    prometheus.Counter
	deadLetters        prometheus.Counter
	processingDuration prometheus.Histogram
	queueDepth         prometheus.Gauge

	autoBidActions *prometheus.CounterVec

	fanoutPublished *prometheus.CounterVec
	fanoutFailures  *prometheus.CounterVec
	fanoutConnected prometheus.Gauge
}

// New registers all collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		connectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "bidding_connections_active",
			Help: "Number of currently open client connections",
		}),
		connectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bidding_connections_total",
			Help: "Connection attempts by result",
		}, []string{"result"}),
		roomsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "bidding_rooms_active",
			Help: "Number of auction rooms with at least one member",
		}),
		clientEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bidding_client_events_total",
			Help: "Inbound client events by type",
		}, []string{"type"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bidding_rate_limited_total",
			Help: "Actions rejected by the rate limiter by class",
		}, []string{"class"}),

		bidOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bidding_bids_total",
			Help: "Bids by final outcome and reason code",
		}, []string{"outcome", "reason"}),
		pipelineAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "bidding_pipeline_attempts_total",
			Help: "Processing attempts made by pipeline workers",
		}),
		pipelineRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "bidding_pipeline_retries_total",
			Help: "Processing attempts scheduled for retry after an infrastructure failure",
		}),
		deadLetters: f.NewCounter(prometheus.CounterOpts{
			Name: "bidding_pipeline_dead_letters_total",
			Help: "Work items parked because they reference no bid in the local ledger",
		}),
		processingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bidding_pipeline_processing_seconds",
			Help:    "Time from dequeue to a terminal bid status",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "bidding_pipeline_queue_depth",
			Help: "Work items waiting for a worker",
		}),

		autoBidActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bidding_autobid_actions_total",
			Help: "Auto-bid scheduler decisions by action",
		}, []string{"action"}),

		fanoutPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bidding_fanout_published_total",
			Help: "Events published by channel",
		}, []string{"channel"}),
		fanoutFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bidding_fanout_failures_total",
			Help: "Cross-instance publish failures by channel",
		}, []string{"channel"}),
		fanoutConnected: f.NewGauge(prometheus.GaugeOpts{
			Name: "bidding_fanout_connected",
			Help: "1 when the cross-instance transport is connected",
		}),
	}
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connectionsActive.Set(float64(n))
}

// ConnectionAttempt records a handshake result: accepted, refused or throttled
func (m *Metrics) ConnectionAttempt(result string) {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.roomsActive.Set(float64(n))
}

func (m *Metrics) ClientEvent(eventType string) {
	if m == nil {
		return
	}
	m.clientEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RateLimited(class string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(class).Inc()
}

// BidOutcome records a terminal bid status with its reason code ("" for accepted)
func (m *Metrics) BidOutcome(outcome, reason string) {
	if m == nil {
		return
	}
	m.bidOutcomes.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) PipelineAttempt() {
	if m == nil {
		return
	}
	m.pipelineAttempts.Inc()
}

func (m *Metrics) PipelineRetry() {
	if m == nil {
		return
	}
	m.pipelineRetries.Inc()
}

func (m *Metrics) DeadLetter() {
	if m == nil {
		return
	}
	m.deadLetters.Inc()
}

func (m *Metrics) ObserveProcessing(d time.Duration) {
	if m == nil {
		return
	}
	m.processingDuration.Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// AutoBid records a scheduler decision: submitted, skipped_leader, skipped_no_bids, deactivated or failed
func (m *Metrics) AutoBid(action string) {
	if m == nil {
		return
	}
	m.autoBidActions.WithLabelValues(action).Inc()
}

func (m *Metrics) FanoutPublished(channel string) {
	if m == nil {
		return
	}
	m.fanoutPublished.WithLabelValues(channel).Inc()
}

func (m *Metrics) FanoutFailed(channel string) {
	if m == nil {
		return
	}
	m.fanoutFailures.WithLabelValues(channel).Inc()
}

func (m *Metrics) SetFanoutConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.fanoutConnected.Set(1)
		return
	}
	m.fanoutConnected.Set(0)
}
