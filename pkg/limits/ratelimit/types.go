package ratelimit

import "time"

// Config contains the pacing settings for one transport.
type Config struct {
	// Interval is the minimum time between two accepted messages of one user.
	// Zero disables pacing.
	Interval time.Duration

	// MaxUsers bounds the number of users tracked at once. When the bound is
	// reached the least recently seen user is forgotten early.
	// Default: 10000
	MaxUsers int
}

// CheckResult contains the result of a pacing check.
type CheckResult struct {
	// Allowed indicates if the message is accepted.
	Allowed bool

	// Reason explains why the message was rejected (if Allowed=false).
	Reason string

	// RetryAfter is how long the user has to wait before the next message
	// is accepted.
	RetryAfter time.Duration
}
