// Package engine routes quote requests to a provider strategy or to the
// fallback relay, and fans one pair out across many providers.
package engine

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"dexquote/internal/dedup"
	"dexquote/internal/executor"
	"dexquote/internal/fallback"
	"dexquote/internal/quote"
)

// Router is safe for concurrent use.
type Router struct {
	direct   *executor.Executor
	fallback *fallback.Executor
	// fallbackOnly lists providers with no strategy that may use the relay.
	fallbackOnly      map[string]bool
	fallbackOnFailure bool
	dedup             *dedup.Policy
	logger            *zap.Logger
}

type Option func(*Router)

func WithFallback(f *fallback.Executor) Option {
	return func(r *Router) {
		r.fallback = f
	}
}

// WithFallbackOnly marks providers that are only reachable via the relay.
func WithFallbackOnly(names []string) Option {
	return func(r *Router) {
		for _, n := range names {
			r.fallbackOnly[strings.ToLower(strings.TrimSpace(n))] = true
		}
	}
}

// WithFallbackOnFailure issues one relay call after a transient direct
// failure on providers that allow it. Off by default.
func WithFallbackOnFailure(on bool) Option {
	return func(r *Router) {
		r.fallbackOnFailure = on
	}
}

func WithDedup(p *dedup.Policy) Option {
	return func(r *Router) {
		r.dedup = p
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

func New(direct *executor.Executor, options ...Option) *Router {
	r := &Router{
		direct:       direct,
		fallbackOnly: make(map[string]bool),
		logger:       zap.NewNop(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Quote resolves req.Provider exactly once through the route it belongs to.
func (r *Router) Quote(ctx context.Context, req quote.Request, settings quote.Settings) (*quote.Result, error) {
	key := strings.ToLower(strings.TrimSpace(req.Provider))
	if req.Fallback || r.fallbackOnly[key] {
		return r.viaFallback(ctx, req, settings)
	}

	res, err := r.dedup.Do(ctx, quote.RouteDirect, req, settings, r.executeDirect, r.leaveDirect(key))
	if err == nil || !r.fallbackOnFailure || r.fallback == nil {
		return res, err
	}
	qe, ok := quote.AsError(err)
	if !ok || !qe.Classification.Transient() {
		return nil, err
	}
	if d, ok := r.direct.Registry().Resolve(key); !ok || !d.FallbackAllowed {
		return nil, err
	}
	r.logger.Info("direct quote failed, trying fallback",
		zap.String("provider", key),
		zap.String("classification", string(qe.Classification)),
		zap.String("correlation_id", req.CorrelationID),
	)
	return r.viaFallback(ctx, req, settings)
}

func (r *Router) executeDirect(ctx context.Context, req quote.Request, settings quote.Settings) (*quote.Result, error) {
	return r.direct.Execute(ctx, req.Provider, req, settings)
}

func (r *Router) viaFallback(ctx context.Context, req quote.Request, settings quote.Settings) (*quote.Result, error) {
	if r.fallback == nil {
		qe := quote.Unsupported(strings.ToUpper(req.Provider), req.Provider)
		qe.Message += " (fallback relay disabled)"
		qe.CorrelationID = req.CorrelationID
		return nil, qe
	}
	return r.dedup.Do(ctx, quote.RouteFallback, req, settings, r.fallback.Quote, leaveFallback(req.Provider))
}

// leaveDirect classifies a caller that stopped waiting on a shared direct
// call the way the executor classifies its own timeouts.
func (r *Router) leaveDirect(key string) dedup.LeaveFunc {
	return func(err error) error {
		label := strings.ToUpper(key)
		if d, ok := r.direct.Registry().Resolve(key); ok && d.Strategy != nil {
			label = d.Strategy.Label()
		}
		return executor.TransportFailure(label, err)
	}
}

func leaveFallback(provider string) dedup.LeaveFunc {
	return func(err error) error {
		qe := executor.TransportFailure(fallback.Label, err)
		qe.ProviderLabel = strings.ToUpper(strings.TrimSpace(provider))
		return qe
	}
}

// Outcome is one provider's answer in a fan-out.
type Outcome struct {
	Provider string        `json:"provider"`
	Result   *quote.Result `json:"result,omitempty"`
	Err      *quote.Error  `json:"error,omitempty"`
}

// QuoteAll quotes req on every provider concurrently. Outcomes arrive in
// completion order; one provider failing never affects the others.
func (r *Router) QuoteAll(ctx context.Context, providers []string, req quote.Request, settings quote.Settings) []Outcome {
	ch := make(chan Outcome, len(providers))
	for _, p := range providers {
		go func() {
			pr := req
			pr.Provider = p
			res, err := r.Quote(ctx, pr, settings)
			ch <- Outcome{Provider: p, Result: res, Err: asQuoteError(err, pr)}
		}()
	}
	out := make([]Outcome, 0, len(providers))
	for range providers {
		out = append(out, <-ch)
	}
	return out
}

func asQuoteError(err error, req quote.Request) *quote.Error {
	if err == nil {
		return nil
	}
	if qe, ok := quote.AsError(err); ok {
		return qe
	}
	return &quote.Error{
		Classification: quote.HTTPError,
		Message:        err.Error(),
		ProviderLabel:  strings.ToUpper(req.Provider),
		CorrelationID:  req.CorrelationID,
		Err:            err,
	}
}

// ProviderInfo describes one quotable provider.
type ProviderInfo struct {
	Name            string `json:"name"`
	Label           string `json:"label,omitempty"`
	AliasOf         string `json:"aliasOf,omitempty"`
	ProxyEnabled    bool   `json:"proxyEnabled"`
	FallbackAllowed bool   `json:"fallbackAllowed"`
	FallbackOnly    bool   `json:"fallbackOnly"`
}

// Providers lists registry entries in registration order followed by the
// fallback-only providers.
func (r *Router) Providers() []ProviderInfo {
	var out []ProviderInfo
	for _, d := range r.direct.Registry().Entries() {
		info := ProviderInfo{
			Name:            d.Key,
			AliasOf:         d.AliasOf,
			ProxyEnabled:    d.ProxyEnabled,
			FallbackAllowed: d.FallbackAllowed,
		}
		if d.Strategy != nil {
			info.Label = d.Strategy.Label()
		}
		out = append(out, info)
	}
	names := make([]string, 0, len(r.fallbackOnly))
	for n := range r.fallbackOnly {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		out = append(out, ProviderInfo{Name: n, Label: strings.ToUpper(n), FallbackAllowed: true, FallbackOnly: true})
	}
	return out
}
