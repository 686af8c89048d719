package ratelimit

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Gates holds one limiter per provider key. Providers without a limiter are
// not gated. A nil *Gates gates nothing.
type Gates struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

func New(limits map[string]Limits) *Gates {
	g := &Gates{limiters: make(map[string]*rate.Limiter, len(limits))}
	for name, l := range limits {
		g.Set(name, l)
	}
	return g
}

// Set replaces the limiter of provider. A zero Limits removes it.
func (g *Gates) Set(provider string, l Limits) {
	key := strings.ToLower(provider)
	lim := NewLimiter(l)

	g.mu.Lock()
	defer g.mu.Unlock()
	if lim == nil {
		delete(g.limiters, key)
		return
	}
	g.limiters[key] = lim
}

// Wait blocks until provider may issue a call or ctx is done. Concurrent
// callers queue on the same bucket.
func (g *Gates) Wait(ctx context.Context, provider string) error {
	if g == nil {
		return nil
	}
	g.mu.RLock()
	lim := g.limiters[strings.ToLower(provider)]
	g.mu.RUnlock()
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}
