package registry

import (
	"fmt"

	"dexquote/internal/provider"
)

// Entry is one row of the static provider table.
type Entry struct {
	Name          string
	Strategy      string
	Proxy         bool
	AllowFallback bool
	AliasOf       string
}

// Seed registers every table row that has a strategy or an alias. Rows with
// neither are fallback-only providers; their names are returned so the
// caller can route them to the fallback service.
func Seed(r *Registry, table []Entry, strategies map[string]provider.Strategy) ([]string, error) {
	var fallbackOnly []string
	for _, e := range table {
		name := normalize(e.Name)
		d := Descriptor{
			ProxyEnabled:    e.Proxy,
			FallbackAllowed: e.AllowFallback,
			AliasOf:         e.AliasOf,
		}
		if e.Strategy != "" {
			s, ok := strategies[normalize(e.Strategy)]
			if !ok {
				return nil, fmt.Errorf("registry: provider %q references unknown strategy %q", name, e.Strategy)
			}
			d.Strategy = s
		}
		if d.Strategy == nil && normalize(d.AliasOf) == "" {
			fallbackOnly = append(fallbackOnly, name)
			continue
		}
		if err := r.Register(name, d); err != nil {
			return nil, err
		}
	}
	return fallbackOnly, nil
}
