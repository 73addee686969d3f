package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HandshakeLimiter throttles connection attempts per remote IP with a token bucket
type HandshakeLimiter struct {
	mu      sync.Mutex
	entries map[string]*ipEntry
	rate    rate.Limit
	burst   int
	now     func() time.Time
}

type ipEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewHandshakeLimiter allows perSecond sustained handshakes per IP with the given burst
func NewHandshakeLimiter(perSecond float64, burst int, now func() time.Time) *HandshakeLimiter {
	if now == nil {
		now = time.Now
	}
	return &HandshakeLimiter{
		entries: make(map[string]*ipEntry),
		rate:    rate.Limit(perSecond),
		burst:   burst,
		now:     now,
	}
}

// Allow reports whether a handshake from ip may proceed
func (h *HandshakeLimiter) Allow(ip string) bool {
	now := h.now()

	h.mu.Lock()
	e, ok := h.entries[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(h.rate, h.burst)}
		h.entries[ip] = e
	}
	e.lastAccess = now
	h.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Sweep forgets IPs not seen for longer than idle
func (h *HandshakeLimiter) Sweep(now time.Time, idle time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for ip, e := range h.entries {
		if now.Sub(e.lastAccess) > idle {
			delete(h.entries, ip)
			removed++
		}
	}
	return removed
}

// Tracked returns the number of IPs currently tracked
func (h *HandshakeLimiter) Tracked() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
