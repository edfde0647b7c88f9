package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Local keeps buckets in process memory. Limits are not shared between
// instances, so it only suits single-instance development setups.
type Local struct {
	cfg Config

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

var _ Limiter = (*Local)(nil)

func NewLocal(cfg Config) (*Local, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Local{
		cfg:         cfg,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}, nil
}

func (l *Local) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeCleanup()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.cfg.refillInterval()), l.cfg.Capacity)
		l.limiters[key] = lim
	}
	return lim
}

// maybeCleanup drops idle (full) buckets at most once per window. Caller
// holds mu.
func (l *Local) maybeCleanup() {
	if time.Since(l.lastCleanup) < l.cfg.Window {
		return
	}
	l.lastCleanup = time.Now()

	for key, lim := range l.limiters {
		if lim.Tokens() >= float64(l.cfg.Capacity) {
			delete(l.limiters, key)
		}
	}
}

func (l *Local) Allow(_ context.Context, key string) (Decision, error) {
	lim := l.limiter(key)

	if lim.Allow() {
		return Decision{Allowed: true, Remaining: int(lim.Tokens())}, nil
	}

	// Peek at the wait without consuming the reservation.
	r := lim.Reserve()
	delay := r.Delay()
	r.Cancel()

	return Decision{Allowed: false, RetryAfter: delay}, nil
}

func (l *Local) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
	return nil
}
