package dedup

import (
	"sync"
	"time"

	"dexquote/internal/quote"
)

// entry stores one successful result with its expiry.
type entry struct {
	expiresAt time.Time
	result    quote.Result
}

// memo keeps successful results per fingerprint for a TTL.
type memo struct {
	ttl      time.Duration
	maxItems int
	now      func() time.Time

	mu    sync.RWMutex
	items map[string]entry
}

func newMemo(ttl time.Duration, maxItems int) *memo {
	return &memo{ttl: ttl, maxItems: maxItems, now: time.Now, items: make(map[string]entry)}
}

func (m *memo) get(key string) (quote.Result, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expiresAt) {
		return quote.Result{}, false
	}
	return e.result, true
}

func (m *memo) put(key string, res quote.Result) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = entry{expiresAt: now.Add(m.ttl), result: res}
	if m.maxItems <= 0 || len(m.items) <= m.maxItems {
		return
	}
	// expired first, then arbitrary keys until under the cap
	for k, v := range m.items {
		if !now.Before(v.expiresAt) {
			delete(m.items, k)
		}
	}
	for k := range m.items {
		if len(m.items) <= m.maxItems {
			break
		}
		if k == key {
			continue
		}
		delete(m.items, k)
	}
}

func (m *memo) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
