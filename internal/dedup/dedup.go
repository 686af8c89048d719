// Package dedup decides whether identical concurrent quote requests share
// one provider call. The default mode is off: every call reaches the
// provider.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"dexquote/internal/metrics"
	"dexquote/internal/quote"
)

// Mode selects the dedup policy.
type Mode string

const (
	// ModeOff sends every request to the provider.
	ModeOff Mode = "off"
	// ModeInflight coalesces identical requests that overlap in time.
	ModeInflight Mode = "inflight"
	// ModeTTL also serves successful results for a short TTL.
	ModeTTL Mode = "ttl"
)

// QuoteFunc is the call being deduplicated.
type QuoteFunc func(ctx context.Context, req quote.Request, settings quote.Settings) (*quote.Result, error)

// Policy applies a Mode. A nil *Policy behaves like ModeOff.
type Policy struct {
	mode    Mode
	group   singleflight.Group
	memo    *memo
	metrics *metrics.QuoteMetrics
}

// New builds a policy. ttl and maxItems only matter for ModeTTL.
func New(mode Mode, ttl time.Duration, maxItems int, m *metrics.QuoteMetrics) (*Policy, error) {
	switch mode {
	case "", ModeOff:
		return &Policy{mode: ModeOff, metrics: m}, nil
	case ModeInflight:
		return &Policy{mode: mode, metrics: m}, nil
	case ModeTTL:
		if ttl <= 0 {
			return nil, fmt.Errorf("dedup: ttl mode needs a positive ttl")
		}
		return &Policy{mode: mode, memo: newMemo(ttl, maxItems), metrics: m}, nil
	}
	return nil, fmt.Errorf("dedup: unknown mode %q", mode)
}

func (p *Policy) Mode() Mode {
	if p == nil {
		return ModeOff
	}
	return p.mode
}

// Fingerprint identifies requests that would produce the same quote. The
// correlation id is not part of it. The wallet is the effective one: the
// request wallet, else the settings wallet.
func Fingerprint(route quote.Route, req quote.Request, settings quote.Settings) string {
	wallet := req.Wallet
	if wallet == "" {
		wallet = settings.Wallet
	}
	return strings.Join([]string{
		string(route),
		strings.ToLower(strings.TrimSpace(req.Provider)),
		fmt.Sprint(req.Chain.ID),
		strings.ToLower(req.Source.Address),
		fmt.Sprint(req.Source.Decimals),
		strings.ToLower(req.Dest.Address),
		fmt.Sprint(req.Dest.Decimals),
		req.Amount.String(),
		strings.ToLower(string(req.Action)),
		strings.ToLower(wallet),
		fmt.Sprint(req.Slippage),
		fmt.Sprint(settings.GasPriceGwei),
	}, "|")
}

// LeaveFunc turns the context error of a caller that stopped waiting on a
// shared call into that caller's own failure.
type LeaveFunc func(err error) error

// Do runs fn under the policy. Shared results and errors always carry the
// caller's own correlation id.
//
// A shared call runs detached from any caller's cancellation and bounded by
// the first caller's timeout. Each caller waits on its own context and its
// own timeout; when either ends first it gets leave(ctx.Err()) while the
// shared call keeps serving the others.
func (p *Policy) Do(ctx context.Context, route quote.Route, req quote.Request, settings quote.Settings, fn QuoteFunc, leave LeaveFunc) (*quote.Result, error) {
	if p == nil || p.mode == ModeOff {
		return fn(ctx, req, settings)
	}
	key := Fingerprint(route, req, settings)

	if p.memo != nil {
		if res, ok := p.memo.get(key); ok {
			p.metrics.Shared(req.Provider, string(p.mode))
			return withCorrelation(&res, req.CorrelationID), nil
		}
	}

	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(shared, settings.Timeout())
		defer cancel()
		res, err := fn(callCtx, req, settings)
		if err == nil && p.memo != nil {
			p.memo.put(key, *res)
		}
		return res, err
	})

	waitCtx, cancel := context.WithTimeout(ctx, settings.Timeout())
	defer cancel()

	var out singleflight.Result
	select {
	case out = <-ch:
	case <-waitCtx.Done():
		err := waitCtx.Err()
		if leave != nil {
			err = leave(err)
		}
		return nil, withErrorCorrelation(err, req.CorrelationID)
	}

	if out.Shared {
		p.metrics.Shared(req.Provider, string(p.mode))
	}
	if out.Err != nil {
		return nil, withErrorCorrelation(out.Err, req.CorrelationID)
	}
	return withCorrelation(out.Val.(*quote.Result), req.CorrelationID), nil
}

func withCorrelation(res *quote.Result, id string) *quote.Result {
	cp := *res
	cp.CorrelationID = id
	return &cp
}

func withErrorCorrelation(err error, id string) error {
	qe, ok := quote.AsError(err)
	if !ok {
		return err
	}
	cp := *qe
	cp.CorrelationID = id
	return &cp
}
