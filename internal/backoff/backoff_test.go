package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicy_NextDelay(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Max: time.Second, MaxAttempts: 3}

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "zero_attempt", attempt: 0, want: 0},
		{name: "negative_attempt", attempt: -2, want: 0},
		{name: "first_attempt", attempt: 1, want: 100 * time.Millisecond},
		{name: "second_attempt_doubles", attempt: 2, want: 200 * time.Millisecond},
		{name: "third_attempt_doubles_again", attempt: 3, want: 400 * time.Millisecond},
		{name: "capped_at_max", attempt: 5, want: time.Second},
		{name: "large_attempt_no_overflow", attempt: 200, want: time.Second},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, p.NextDelay(tc.attempt))
		})
	}
}

func TestPolicy_NextDelay_Uncapped(t *testing.T) {
	p := Policy{Base: time.Millisecond}
	require.Equal(t, 8*time.Millisecond, p.NextDelay(4))
}

func TestPolicy_Exhausted(t *testing.T) {
	p := Policy{MaxAttempts: 3}
	require.False(t, p.Exhausted(1))
	require.False(t, p.Exhausted(2))
	require.True(t, p.Exhausted(3))
	require.True(t, p.Exhausted(4))
}
