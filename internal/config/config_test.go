package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INSTANCE_ID", "instance-test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "instance-test", cfg.InstanceID)
	require.Equal(t, 3, cfg.PipelineMaxAttempts)
	require.Equal(t, 30*time.Second, cfg.AutoBidInterval)
	require.Equal(t, 5*time.Minute, cfg.SweepInterval)
	require.Equal(t, 60*time.Second, cfg.BidBurstWindow)
	require.False(t, cfg.AuthPermissive)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_PERMISSIVE", "true")
	t.Setenv("RATE_BID_LIMIT", "7")
	t.Setenv("PIPELINE_BASE_DELAY", "50ms")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.AuthPermissive)
	require.Equal(t, 7, cfg.RateBidLimit)
	require.Equal(t, 50*time.Millisecond, cfg.PipelineBaseDelay)
	require.NotEmpty(t, cfg.InstanceID)
}

func TestConfig_WorkQueueKeyIsPerInstance(t *testing.T) {
	t.Setenv("QUEUE_KEY", "bids")

	t.Setenv("INSTANCE_ID", "instance-a")
	a, err := Load()
	require.NoError(t, err)

	t.Setenv("INSTANCE_ID", "instance-b")
	b, err := Load()
	require.NoError(t, err)

	require.Equal(t, "bids:instance-a", a.WorkQueueKey())
	require.Equal(t, "bids:instance-b", b.WorkQueueKey())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		t.Setenv("INSTANCE_ID", "i")
		cfg, err := Load()
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "zero_workers", mutate: func(c *Config) { c.PipelineWorkers = 0 }, errMsg: "PIPELINE_WORKERS"},
		{name: "bad_log_level", mutate: func(c *Config) { c.LogLevel = "trace" }, errMsg: "LOG_LEVEL"},
		{name: "bad_log_format", mutate: func(c *Config) { c.LogFormat = "pretty" }, errMsg: "LOG_FORMAT"},
		{name: "max_delay_below_base", mutate: func(c *Config) { c.PipelineMaxDelay = time.Millisecond }, errMsg: "PIPELINE_MAX_DELAY"},
		{name: "negative_ceiling", mutate: func(c *Config) { c.BidCeiling = -1 }, errMsg: "BID_CEILING"},
		{name: "zero_rate_window", mutate: func(c *Config) { c.RateWindow = 0 }, errMsg: "RATE_WINDOW"},
		{name: "empty_secret", mutate: func(c *Config) { c.JWTSecret = "" }, errMsg: "AUTH_JWT_SECRET"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
