package ratelimit

import (
	"sync"
	"time"
)

// Class groups actions that share a budget
type Class string

const (
	ClassJoin  Class = "join"
	ClassEvent Class = "event"
	ClassBid   Class = "bid"
)

// Rule allows Limit actions per Window
type Rule struct {
	Limit  int
	Window time.Duration
}

// Counter is the state kept per (identity, class)
type Counter struct {
	Count   int
	ResetAt time.Time
}

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Stats summarizes limiter state for the status surface
type Stats struct {
	Counters   int `json:"counters"`
	Identities int `json:"identities"`
}

type counterKey struct {
	identity string
	class    Class
}

// Limiter keeps one fixed-window counter per (identity, class)
type Limiter struct {
	mu       sync.Mutex
	rules    map[Class]Rule
	counters map[counterKey]*Counter
	now      func() time.Time
}

// New creates a limiter with the given rules. A nil clock uses time.Now.
func New(rules map[Class]Rule, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	r := make(map[Class]Rule, len(rules))
	for c, rule := range rules {
		r[c] = rule
	}
	return &Limiter{
		rules:    r,
		counters: make(map[counterKey]*Counter),
		now:      now,
	}
}

// Allow counts one action for identity in class. A rejected action is not counted.
// Classes without a rule are always allowed.
func (l *Limiter) Allow(identity string, class Class) Decision {
	rule, ok := l.rules[class]
	if !ok || rule.Limit <= 0 {
		return Decision{Allowed: true}
	}

	now := l.now()
	key := counterKey{identity: identity, class: class}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || !now.Before(c.ResetAt) {
		c = &Counter{ResetAt: now.Add(rule.Window)}
		l.counters[key] = c
	}

	if c.Count >= rule.Limit {
		return Decision{Allowed: false, RetryAfter: c.ResetAt.Sub(now)}
	}
	c.Count++
	return Decision{Allowed: true, Remaining: rule.Limit - c.Count}
}

// Peek returns a copy of the counter for identity in class
func (l *Limiter) Peek(identity string, class Class) (Counter, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[counterKey{identity: identity, class: class}]
	if !ok {
		return Counter{}, false
	}
	return *c, true
}

// Sweep drops every counter whose window has elapsed and returns how many were removed
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.counters {
		if !now.Before(c.ResetAt) {
			delete(l.counters, key)
			removed++
		}
	}
	return removed
}

// Stats returns the number of live counters and distinct identities
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	identities := make(map[string]struct{}, len(l.counters))
	for key := range l.counters {
		identities[key.identity] = struct{}{}
	}
	return Stats{Counters: len(l.counters), Identities: len(identities)}
}
