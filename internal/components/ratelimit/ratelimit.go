// Package ratelimit implements per-action sliding-window rate limiting keyed
// by caller identity.
package ratelimit

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

const shardCount = 32

// Rule bounds one action: at most MaxRequests admissions in any trailing
// Window.
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// Validate reports whether the rule is usable.
func (r Rule) Validate() error {
	if r.MaxRequests <= 0 {
		return fmt.Errorf("max requests must be positive, got %d", r.MaxRequests)
	}
	if r.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", r.Window)
	}
	return nil
}

// window holds admission timestamps for one (action, key) pair, oldest first.
type window struct {
	stamps []time.Time
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Limiter tracks admissions per (action, key). The check and the record
// happen under one shard lock, so concurrent callers for the same key can
// never both take the last slot.
type Limiter struct {
	rulesMu sync.RWMutex
	rules   map[string]Rule

	shards [shardCount]*shard
	now    func() time.Time
	log    *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used by the janitor.
func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// New creates a limiter with no rules. Actions without a rule are unlimited.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		rules: make(map[string]Rule),
		now:   time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = logutil.NoopIfNil(l.log)
	return l
}

// SetRule installs or replaces the rule for action.
func (l *Limiter) SetRule(action string, rule Rule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("ratelimit %q: %w", action, err)
	}
	l.rulesMu.Lock()
	l.rules[action] = rule
	l.rulesMu.Unlock()
	return nil
}

// Rule returns the rule for action.
func (l *Limiter) Rule(action string) (Rule, bool) {
	l.rulesMu.RLock()
	defer l.rulesMu.RUnlock()
	r, ok := l.rules[action]
	return r, ok
}

// Allow admits one request for (action, key) or returns a rate-limit error
// whose RetryAfter is the time until the oldest counted admission leaves the
// window. A rejected request is not recorded.
func (l *Limiter) Allow(action, key string) error {
	rule, ok := l.Rule(action)
	if !ok {
		return nil
	}

	id := action + "\x00" + key
	s := l.shardFor(id)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[id]
	if w == nil {
		w = &window{}
		s.windows[id] = w
	}
	w.prune(now.Add(-rule.Window))

	if len(w.stamps) >= rule.MaxRequests {
		retry := w.stamps[0].Add(rule.Window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return apperr.RateLimited(retry)
	}

	w.stamps = append(w.stamps, now)
	return nil
}

// Remaining reports how many admissions (action, key) has left right now.
// Unlimited actions report -1.
func (l *Limiter) Remaining(action, key string) int {
	rule, ok := l.Rule(action)
	if !ok {
		return -1
	}
	id := action + "\x00" + key
	s := l.shardFor(id)
	cutoff := l.now().Add(-rule.Window)

	s.mu.Lock()
	defer s.mu.Unlock()

	used := 0
	if w := s.windows[id]; w != nil {
		for _, ts := range w.stamps {
			if ts.After(cutoff) {
				used++
			}
		}
	}
	if used >= rule.MaxRequests {
		return 0
	}
	return rule.MaxRequests - used
}

// Sweep drops windows with no admissions inside their action's window.
// It returns the number of windows removed.
func (l *Limiter) Sweep() int {
	l.rulesMu.RLock()
	rules := make(map[string]Rule, len(l.rules))
	for k, v := range l.rules {
		rules[k] = v
	}
	l.rulesMu.RUnlock()

	now := l.now()
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for id, w := range s.windows {
			rule, ok := rules[actionOf(id)]
			if ok {
				w.prune(now.Add(-rule.Window))
			}
			if !ok || len(w.stamps) == 0 {
				delete(s.windows, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Run sweeps on interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.log.Debug("rate limit windows swept", "removed", n)
			}
		}
	}
}

func (l *Limiter) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return l.shards[h.Sum32()%shardCount]
}

// prune drops stamps at or before cutoff.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

func actionOf(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == 0 {
			return id[:i]
		}
	}
	return id
}
