// Package ratelimit implements token-bucket limiting keyed by an arbitrary
// string (a client address for logins). The Redis backend shares one bucket
// per key across every service instance; the Local backend is per-process
// and meant for development.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Config describes a bucket holding Capacity tokens that refills to full
// over Window.
type Config struct {
	Capacity int
	Window   time.Duration
}

// LoginDefaults is five attempts refilled over one minute.
var LoginDefaults = Config{Capacity: 5, Window: time.Minute}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return errors.New("ratelimit: capacity must be positive")
	}
	if c.Window <= 0 {
		return errors.New("ratelimit: window must be positive")
	}
	return nil
}

// refillInterval is the time it takes to earn back a single token.
func (c Config) refillInterval() time.Duration {
	return c.Window / time.Duration(c.Capacity)
}

// Decision is the outcome of one acquire attempt.
type Decision struct {
	Allowed   bool
	Remaining int

	// RetryAfter is how long until the next token is available. Zero when
	// the request was allowed.
	RetryAfter time.Duration
}

// Limiter takes tokens from per-key buckets.
type Limiter interface {
	// Allow takes one token for key if one is available.
	Allow(ctx context.Context, key string) (Decision, error)

	// Reset refills key's bucket.
	Reset(ctx context.Context, key string) error
}
