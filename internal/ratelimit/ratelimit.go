// Package ratelimit throttles inbound events per connection and new
// connections per remote address.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/c-pro/geche"
	"golang.org/x/time/rate"
)

// Events returns a token bucket for one connection. A non-positive rate
// disables the limit.
func Events(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
}

// Addresses keeps one limiter per remote address. Idle addresses expire
// from the cache so the map does not grow without bound.
type Addresses struct {
	limiters geche.Geche[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
}

// NewAddresses allows perMinute connections per address, refilled evenly.
// A non-positive value disables the limit.
func NewAddresses(ctx context.Context, perMinute int) *Addresses {
	a := &Addresses{
		limiters: geche.NewMapTTLCache[string, *rate.Limiter](ctx, 2*time.Minute, time.Minute),
		limit:    rate.Inf,
	}
	if perMinute > 0 {
		a.limit = rate.Every(time.Minute / time.Duration(perMinute))
		a.burst = perMinute
	}
	return a
}

func (a *Addresses) Allow(addr string) bool {
	if a.limit == rate.Inf {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	l, err := a.limiters.Get(addr)
	if err != nil {
		l = rate.NewLimiter(a.limit, a.burst)
	}
	// Set refreshes the TTL of active addresses.
	a.limiters.Set(addr, l)
	return l.Allow()
}
