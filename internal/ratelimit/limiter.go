// Package ratelimit implements a fixed-window request counter per
// (actor, operation) pair.
//
// Known limitation: counters live in process memory, so in a multi-instance
// deployment each instance enforces its own window independently and the
// effective limit is approximately max * instances. A shared counter store
// (e.g. Redis) is required for an exact global limit.
package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"
)

type Operation string

const (
	OpFileUpload   Operation = "fileUpload"
	OpFolderCreate Operation = "folderCreate"
	OpFileDelete   Operation = "fileDelete"
	OpAPICall      Operation = "apiCall"
	OpSearch       Operation = "search"
)

// Rule is the statically configured budget for one operation.
type Rule struct {
	Max    int
	Window time.Duration
}

// DefaultRules is the operation catalog; override per deployment via
// NewLimiter.
var DefaultRules = map[Operation]Rule{
	OpFileUpload:   {Max: 30, Window: time.Minute},
	OpFolderCreate: {Max: 20, Window: time.Minute},
	OpFileDelete:   {Max: 60, Window: time.Minute},
	OpAPICall:      {Max: 300, Window: time.Minute},
	OpSearch:       {Max: 60, Window: time.Minute},
}

type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

type key struct {
	actor string
	op    Operation
}

type Limiter struct {
	mu      sync.Mutex
	entries map[key]*entry
	rules   map[Operation]Rule
	now     func() time.Time
}

func NewLimiter(rules map[Operation]Rule) *Limiter {
	if rules == nil {
		rules = DefaultRules
	}
	return &Limiter{
		entries: make(map[key]*entry),
		rules:   rules,
		now:     time.Now,
	}
}

// Check counts one attempt for (actorID, op) and reports whether it fits the
// current window. The window resets on the first check past resetAt; the
// count increments on every call, allowed or not, so Remaining never goes
// negative but repeated rejected calls do not extend the window.
func (l *Limiter) Check(actorID string, op Operation) Result {
	rule, ok := l.rules[op]
	if !ok {
		rule = l.rules[OpAPICall]
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{actor: actorID, op: op}
	e, exists := l.entries[k]
	if !exists || now.After(e.resetAt) {
		e = &entry{count: 0, resetAt: now.Add(rule.Window)}
		l.entries[k] = e
	}

	e.count++

	remaining := rule.Max - e.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   e.count <= rule.Max,
		Remaining: remaining,
		ResetAt:   e.resetAt,
	}
}

// Sweep drops expired entries every interval until ctx is cancelled. Keeps
// the map bounded by the number of actors active within one window.
func (l *Limiter) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := l.sweepOnce()
			if removed > 0 {
				log.Printf("[RateLimit] Swept %d expired entries", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (l *Limiter) sweepOnce() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}
