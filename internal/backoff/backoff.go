package backoff

import (
	"math"
	"time"
)

// Policy describes a bounded exponential backoff
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// NextDelay returns how long to wait before the given attempt is retried.
// Attempt 1 waits Base, attempt 2 waits 2*Base and so on, capped at Max.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt <= 0 || p.Base <= 0 {
		return 0
	}

	delay := p.Base
	for i := 1; i < attempt; i++ {
		if delay > math.MaxInt64/2 {
			return time.Duration(math.MaxInt64)
		}
		delay *= 2
		if p.Max > 0 && delay >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && delay > p.Max {
		return p.Max
	}
	return delay
}

// Exhausted reports whether no attempt remains after the given one
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
