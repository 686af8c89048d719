// Package registry maps provider identifiers to quote strategies.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"dexquote/internal/provider"
)

// Descriptor is one registry entry.
type Descriptor struct {
	// Key is the normalized lower-case identifier.
	Key             string
	Strategy        provider.Strategy
	ProxyEnabled    bool
	FallbackAllowed bool
	// AliasOf names the canonical entry this key resolves to.
	AliasOf string
}

// Registry is safe for concurrent use. Each Register is atomic, so readers
// never observe a partially written entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
	order   []string
}

func New() *Registry {
	return &Registry{entries: make(map[string]Descriptor)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register stores d under name, replacing any previous entry.
func (r *Registry) Register(name string, d Descriptor) error {
	key := normalize(name)
	if key == "" {
		return errors.New("registry: empty provider name")
	}
	d.AliasOf = normalize(d.AliasOf)
	if d.Strategy == nil && d.AliasOf == "" {
		return fmt.Errorf("registry: provider %q has neither a strategy nor an alias", key)
	}
	d.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; !exists {
		r.order = append(r.order, key)
	}
	r.entries[key] = d
	return nil
}

// Resolve looks name up case-insensitively and follows one alias hop. The
// returned descriptor is the alias target's.
func (r *Registry) Resolve(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.entries[normalize(name)]
	if !ok {
		return Descriptor{}, false
	}
	if d.AliasOf != "" {
		d, ok = r.entries[d.AliasOf]
		if !ok || d.Strategy == nil {
			return Descriptor{}, false
		}
	}
	return d, true
}

// List returns registered keys in insertion order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Entries returns the raw, unresolved entries in insertion order.
func (r *Registry) Entries() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}
