package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultDelay is the minimum spacing between two requests to the same host.
const DefaultDelay = time.Second

// DomainLimiter enforces a fixed delay between requests to each host.
// Hosts are independent: a slow origin never delays another.
type DomainLimiter struct {
	delay time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDomainLimiter creates a limiter. A zero or negative delay disables it.
func NewDomainLimiter(delay time.Duration) *DomainLimiter {
	return &DomainLimiter{
		delay:    delay,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Delay returns the configured per-host delay.
func (d *DomainLimiter) Delay() time.Duration {
	if d == nil {
		return 0
	}
	return d.delay
}

// Wait blocks until a request to host may be sent or ctx is done.
// The first request to a host is never delayed.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	if d == nil || d.delay <= 0 || host == "" {
		return ctx.Err()
	}
	return d.limiterFor(host).Wait(ctx)
}

func (d *DomainLimiter) limiterFor(host string) *rate.Limiter {
	host = strings.ToLower(host)

	d.mu.Lock()
	defer d.mu.Unlock()

	limiter, ok := d.limiters[host]
	if !ok {
		// Burst of one: callers are released strictly one per delay.
		limiter = rate.NewLimiter(rate.Every(d.delay), 1)
		d.limiters[host] = limiter
	}
	return limiter
}
