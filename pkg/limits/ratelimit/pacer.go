package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMaxUsers = 10000

// Pacer enforces a minimum interval between accepted messages per user.
type Pacer struct {
	interval time.Duration
	seen     *expirable.LRU[string, time.Time]
	mu       sync.Mutex
}

// NewPacer creates a pacer from config. A non-positive interval yields a
// pacer that accepts everything.
func NewPacer(config Config) *Pacer {
	p := &Pacer{interval: config.Interval}
	if p.interval <= 0 {
		return p
	}

	size := config.MaxUsers
	if size <= 0 {
		size = defaultMaxUsers
	}
	p.seen = expirable.NewLRU[string, time.Time](size, nil, p.interval)
	return p
}

// Check reports whether a message from user is accepted now, and records it
// when it is.
func (p *Pacer) Check(user string) *CheckResult {
	if p.seen == nil {
		return &CheckResult{Allowed: true}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if last, ok := p.seen.Get(user); ok {
		if wait := p.interval - now.Sub(last); wait > 0 {
			return &CheckResult{
				Allowed:    false,
				Reason:     "minimum interval between messages not elapsed",
				RetryAfter: wait,
			}
		}
	}

	p.seen.Add(user, now)
	return &CheckResult{Allowed: true}
}

// Interval returns the configured interval.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Tracked returns the number of users currently inside their interval.
func (p *Pacer) Tracked() int {
	if p.seen == nil {
		return 0
	}
	return p.seen.Len()
}

// Reset forgets every user. This is primarily for testing.
func (p *Pacer) Reset() {
	if p.seen != nil {
		p.seen.Purge()
	}
}
