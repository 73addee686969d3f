package config

import (
	"fmt"
	"time"

	"bidding-gateway/utils"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all service configuration
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8080"`
	InstanceID string `env:"INSTANCE_ID"`

	// Identity verification
	JWTSecret       string        `env:"AUTH_JWT_SECRET" envDefault:"change-me-in-production"`
	AuthPermissive  bool          `env:"AUTH_PERMISSIVE" envDefault:"false"`
	AuthTimeout     time.Duration `env:"AUTH_TIMEOUT" envDefault:"5s"`
	TokenExpiration time.Duration `env:"AUTH_TOKEN_EXPIRATION" envDefault:"1h"`

	// Cross-instance fan-out; empty runs single-instance
	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"auction.events"`

	// Durable queue; empty uses the in-process queue. The key is a prefix, see WorkQueueKey.
	RedisURL string `env:"REDIS_URL"`
	QueueKey string `env:"QUEUE_KEY" envDefault:"bids:pending"`

	// Bid processing pipeline
	PipelineWorkers     int           `env:"PIPELINE_WORKERS" envDefault:"8"`
	PipelineMaxAttempts int           `env:"PIPELINE_MAX_ATTEMPTS" envDefault:"3"`
	PipelineBaseDelay   time.Duration `env:"PIPELINE_BASE_DELAY" envDefault:"200ms"`
	PipelineMaxDelay    time.Duration `env:"PIPELINE_MAX_DELAY" envDefault:"5s"`
	QueueBuffer         int           `env:"QUEUE_BUFFER" envDefault:"4096"`

	// Auction state provider calls
	ProviderTimeout     time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"5s"`
	ProviderMaxAttempts int           `env:"PROVIDER_MAX_ATTEMPTS" envDefault:"3"`

	// Bid validation
	BidCeiling        float64       `env:"BID_CEILING" envDefault:"1000000000"`
	BidMaxPerAuction  int           `env:"BID_MAX_PER_AUCTION" envDefault:"50"`
	BidBurstThreshold int           `env:"BID_BURST_THRESHOLD" envDefault:"3"`
	BidBurstWindow    time.Duration `env:"BID_BURST_WINDOW" envDefault:"60s"`

	// Rate limiting
	RateWindow       time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
	RateJoinLimit    int           `env:"RATE_JOIN_LIMIT" envDefault:"20"`
	RateEventLimit   int           `env:"RATE_EVENT_LIMIT" envDefault:"120"`
	RateBidLimit     int           `env:"RATE_BID_LIMIT" envDefault:"30"`
	HandshakeIPRate  float64       `env:"HANDSHAKE_IP_RATE" envDefault:"5"`
	HandshakeIPBurst int           `env:"HANDSHAKE_IP_BURST" envDefault:"20"`

	// Background jobs
	AutoBidInterval    time.Duration `env:"AUTOBID_INTERVAL" envDefault:"30s"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	IdleTimeout        time.Duration `env:"IDLE_TIMEOUT" envDefault:"10m"`
	RoomGrace          time.Duration `env:"ROOM_GRACE" envDefault:"30s"`
	LifecycleInterval  time.Duration `env:"LIFECYCLE_INTERVAL" envDefault:"1s"`
	StartingSoonWindow time.Duration `env:"STARTING_SOON_WINDOW" envDefault:"5m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	SeedDemo bool `env:"SEED_DEMO" envDefault:"false"`
}

// Load reads configuration from an optional .env file and the environment
// Priority: ENV vars > .env file > defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.Debug("no .env file found, using environment only", nil)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = utils.GeneratePrefixedID("instance")
		if cfg.RedisURL != "" {
			utils.Warn("REDIS_URL set without INSTANCE_ID, queued bids will not be recovered after a restart", map[string]any{
				"instance_id": cfg.InstanceID,
			})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}

	positiveInts := map[string]int{
		"PIPELINE_WORKERS":      c.PipelineWorkers,
		"PIPELINE_MAX_ATTEMPTS": c.PipelineMaxAttempts,
		"PROVIDER_MAX_ATTEMPTS": c.ProviderMaxAttempts,
		"BID_MAX_PER_AUCTION":   c.BidMaxPerAuction,
		"BID_BURST_THRESHOLD":   c.BidBurstThreshold,
		"RATE_JOIN_LIMIT":       c.RateJoinLimit,
		"RATE_EVENT_LIMIT":      c.RateEventLimit,
		"RATE_BID_LIMIT":        c.RateBidLimit,
		"HANDSHAKE_IP_BURST":    c.HandshakeIPBurst,
		"QUEUE_BUFFER":          c.QueueBuffer,
	}
	for name, v := range positiveInts {
		if v < 1 {
			return fmt.Errorf("%s must be > 0, got %d", name, v)
		}
	}

	positiveDurations := map[string]time.Duration{
		"AUTH_TIMEOUT":         c.AuthTimeout,
		"PIPELINE_BASE_DELAY":  c.PipelineBaseDelay,
		"PROVIDER_TIMEOUT":     c.ProviderTimeout,
		"BID_BURST_WINDOW":     c.BidBurstWindow,
		"RATE_WINDOW":          c.RateWindow,
		"AUTOBID_INTERVAL":     c.AutoBidInterval,
		"SWEEP_INTERVAL":       c.SweepInterval,
		"IDLE_TIMEOUT":         c.IdleTimeout,
		"LIFECYCLE_INTERVAL":   c.LifecycleInterval,
		"STARTING_SOON_WINDOW": c.StartingSoonWindow,
	}
	for name, d := range positiveDurations {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0, got %s", name, d)
		}
	}

	if c.PipelineMaxDelay < c.PipelineBaseDelay {
		return fmt.Errorf("PIPELINE_MAX_DELAY (%s) must be >= PIPELINE_BASE_DELAY (%s)", c.PipelineMaxDelay, c.PipelineBaseDelay)
	}
	if c.BidCeiling <= 0 {
		return fmt.Errorf("BID_CEILING must be > 0, got %.2f", c.BidCeiling)
	}
	if c.HandshakeIPRate <= 0 {
		return fmt.Errorf("HANDSHAKE_IP_RATE must be > 0, got %.2f", c.HandshakeIPRate)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, text (got: %s)", c.LogFormat)
	}

	return nil
}

// WorkQueueKey is the Redis key of this instance's work queue. Bid records live in the
// instance's own ledger, so instances never share a queue.
func (c *Config) WorkQueueKey() string {
	return c.QueueKey + ":" + c.InstanceID
}

// LogFields returns the non-secret settings for the startup log line
func (c *Config) LogFields() map[string]any {
	return map[string]any{
		"http_addr":           c.HTTPAddr,
		"instance_id":         c.InstanceID,
		"auth_permissive":     c.AuthPermissive,
		"nats_enabled":        c.NATSURL != "",
		"redis_queue":         c.RedisURL != "",
		"queue_key":           c.WorkQueueKey(),
		"pipeline_workers":    c.PipelineWorkers,
		"pipeline_attempts":   c.PipelineMaxAttempts,
		"bid_ceiling":         c.BidCeiling,
		"bid_max_per_auction": c.BidMaxPerAuction,
		"bid_burst_threshold": c.BidBurstThreshold,
		"bid_burst_window":    c.BidBurstWindow.String(),
		"rate_window":         c.RateWindow.String(),
		"rate_join_limit":     c.RateJoinLimit,
		"rate_event_limit":    c.RateEventLimit,
		"rate_bid_limit":      c.RateBidLimit,
		"autobid_interval":    c.AutoBidInterval.String(),
		"sweep_interval":      c.SweepInterval.String(),
		"idle_timeout":        c.IdleTimeout.String(),
		"log_level":           c.LogLevel,
		"log_format":          c.LogFormat,
	}
}
