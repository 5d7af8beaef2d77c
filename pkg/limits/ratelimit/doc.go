// Package ratelimit paces incoming chat messages per user.
//
// A Pacer accepts at most one message per user within a fixed interval.
// Rejected messages do not push the window forward, so a user who keeps
// sending is accepted again as soon as the interval since the last accepted
// message has elapsed:
//
//	pacer := ratelimit.NewPacer(ratelimit.Config{Interval: 2 * time.Second})
//	if res := pacer.Check(userID); !res.Allowed {
//	    // reply with a "slow down" notice
//	}
//
// Users are tracked in a bounded expiring LRU, so idle users cost nothing
// once their interval has passed.
//
// # Thread Safety
//
// Pacer is safe for concurrent use.
package ratelimit
