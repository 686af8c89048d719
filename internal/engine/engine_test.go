package engine_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"dexquote/internal/dedup"
	"dexquote/internal/engine"
	"dexquote/internal/executor"
	"dexquote/internal/fallback"
	"dexquote/internal/provider/builtin"
	"dexquote/internal/quote"
	"dexquote/internal/quote/quotemock"
	"dexquote/internal/registry"
)

const relayURL = "https://relay.test/quote"

// routedTransport answers kyber and the relay, failing everything else
// with a 503.
type routedTransport struct {
	kyberFails atomic.Bool
	relayCalls atomic.Int32
	kyberCalls atomic.Int32
}

func (rt *routedTransport) Send(_ context.Context, req quote.TransportRequest, _ time.Duration) ([]byte, error) {
	switch {
	case req.URL == relayURL:
		rt.relayCalls.Add(1)
		return []byte(`{"amountOutWei":"2400000000"}`), nil
	case strings.Contains(req.URL, "kyberswap.com"):
		rt.kyberCalls.Add(1)
		if rt.kyberFails.Load() {
			return nil, &quote.TransportError{StatusCode: 503, Token: "error"}
		}
		return []byte(`{"data":{"routeSummary":{"amountOut":"2500000000","gasUsd":"3.2"}}}`), nil
	}
	return nil, &quote.TransportError{StatusCode: 503, Token: "error"}
}

func newRouter(t *testing.T, transport quote.Transport, options ...engine.Option) *engine.Router {
	t.Helper()
	reg := registry.New()
	fallbackOnly, err := registry.Seed(reg, []registry.Entry{
		{Name: "kyber", Strategy: "kyber", AllowFallback: true},
		{Name: "odos", Strategy: "odos"},
		{Name: "magpie", AllowFallback: true},
	}, builtin.Strategies())
	require.NoError(t, err)

	base := []engine.Option{
		engine.WithFallback(fallback.New(transport, fallback.WithEndpoint(relayURL))),
		engine.WithFallbackOnly(fallbackOnly),
	}
	return engine.New(executor.New(reg, transport), append(base, options...)...)
}

func ethToUSDT(provider string) quote.Request {
	return quote.Request{
		Source:        quote.Token{Address: "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE", Decimals: 18},
		Dest:          quote.Token{Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
		Amount:        decimal.NewFromInt(1),
		Chain:         quote.Chain{ID: 1, Name: "ethereum"},
		Provider:      provider,
		Wallet:        "0x1111111111111111111111111111111111111111",
		CorrelationID: "row-1",
	}
}

func TestQuoteDirect(t *testing.T) {
	t.Parallel()

	rt := &routedTransport{}
	router := newRouter(t, rt)

	res, err := router.Quote(t.Context(), ethToUSDT("kyber"), quote.Settings{})

	require.NoError(t, err)
	require.Equal(t, quote.RouteDirect, res.Route)
	require.Equal(t, "KYBER", res.ProviderLabel)
	require.EqualValues(t, 1, rt.kyberCalls.Load())
	require.EqualValues(t, 0, rt.relayCalls.Load())
}

func TestQuoteFallbackOnlyProvider(t *testing.T) {
	t.Parallel()

	rt := &routedTransport{}
	router := newRouter(t, rt)

	res, err := router.Quote(t.Context(), ethToUSDT("Magpie"), quote.Settings{})

	require.NoError(t, err)
	require.Equal(t, quote.RouteFallback, res.Route)
	require.Equal(t, "MAGPIE", res.ProviderLabel)
	require.True(t, decimal.NewFromInt(2400).Equal(res.AmountOut), res.AmountOut.String())
	require.Equal(t, "row-1", res.CorrelationID)
	require.EqualValues(t, 1, rt.relayCalls.Load())
}

func TestQuoteFallbackFlagSkipsDirect(t *testing.T) {
	t.Parallel()

	rt := &routedTransport{}
	router := newRouter(t, rt)
	req := ethToUSDT("kyber")
	req.Fallback = true

	res, err := router.Quote(t.Context(), req, quote.Settings{})

	require.NoError(t, err)
	require.Equal(t, quote.RouteFallback, res.Route)
	require.EqualValues(t, 0, rt.kyberCalls.Load())
}

func TestQuoteNoAutomaticFallbackByDefault(t *testing.T) {
	t.Parallel()

	rt := &routedTransport{}
	rt.kyberFails.Store(true)
	router := newRouter(t, rt)

	_, err := router.Quote(t.Context(), ethToUSDT("kyber"), quote.Settings{})

	qe, ok := quote.AsError(err)
	require.True(t, ok)
	require.Equal(t, quote.HTTPError, qe.Classification)
	require.Equal(t, 503, qe.StatusCode)
	require.EqualValues(t, 1, rt.kyberCalls.Load())
	require.EqualValues(t, 0, rt.relayCalls.Load())
}

func TestQuoteFallbackOnFailure(t *testing.T) {
	t.Parallel()

	rt := &routedTransport{}
	rt.kyberFails.Store(true)
	router := newRouter(t, rt, engine.WithFallbackOnFailure(true))

	res, err := router.Quote(t.Context(), ethToUSDT("kyber"), quote.Settings{})

	require.NoError(t, err)
	require.Equal(t, quote.RouteFallback, res.Route)
	require.EqualValues(t, 1, rt.kyberCalls.Load())
	require.EqualValues(t, 1, rt.relayCalls.Load())
}

func TestQuoteFallbackOnFailureRespectsProviderFlag(t *testing.T) {
	t.Parallel()

	rt := &routedTransport{}
	router := newRouter(t, rt, engine.WithFallbackOnFailure(true))

	// odos answers 503 from routedTransport and does not allow fallback
	_, err := router.Quote(t.Context(), ethToUSDT("odos"), quote.Settings{})

	require.Error(t, err)
	require.EqualValues(t, 0, rt.relayCalls.Load())
}

func TestQuoteFallbackDisabled(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	transport := quotemock.NewMockTransport(ctrl)
	reg := registry.New()
	require.NoError(t, reg.Register("kyber", registry.Descriptor{Strategy: builtin.Strategies()["kyber"]}))
	router := engine.New(executor.New(reg, transport), engine.WithFallbackOnly([]string{"bebop"}))

	_, err := router.Quote(t.Context(), ethToUSDT("bebop"), quote.Settings{})

	qe, ok := quote.AsError(err)
	require.True(t, ok)
	require.Equal(t, quote.UnsupportedProvider, qe.Classification)
	require.Equal(t, "row-1", qe.CorrelationID)
}

func TestQuoteAllIsolatesFailures(t *testing.T) {
	t.Parallel()

	// Arrange: kyber and magpie succeed, odos gets a 503, uniswap is unknown.
	rt := &routedTransport{}
	router := newRouter(t, rt)

	// Act: fan out one pair.
	outcomes := router.QuoteAll(t.Context(), []string{"kyber", "odos", "magpie", "uniswap"}, ethToUSDT(""), quote.Settings{})

	// Assert: one outcome per provider with its own classification.
	require.Len(t, outcomes, 4)
	byProvider := make(map[string]engine.Outcome)
	for _, o := range outcomes {
		byProvider[o.Provider] = o
	}
	require.NotNil(t, byProvider["kyber"].Result)
	require.Nil(t, byProvider["kyber"].Err)
	require.NotNil(t, byProvider["magpie"].Result)
	require.Equal(t, quote.HTTPError, byProvider["odos"].Err.Classification)
	require.Equal(t, quote.UnsupportedProvider, byProvider["uniswap"].Err.Classification)
	for _, o := range outcomes {
		if o.Err != nil {
			require.Equal(t, "row-1", o.Err.CorrelationID)
		} else {
			require.Equal(t, "row-1", o.Result.CorrelationID)
		}
	}
}

func TestQuoteWithTTLDedup(t *testing.T) {
	t.Parallel()

	rt := &routedTransport{}
	policy, err := dedup.New(dedup.ModeTTL, time.Minute, 16, nil)
	require.NoError(t, err)
	router := newRouter(t, rt, engine.WithDedup(policy))

	for range 3 {
		_, err := router.Quote(t.Context(), ethToUSDT("kyber"), quote.Settings{})
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, rt.kyberCalls.Load())
}

// heldTransport answers kyber once release is closed.
type heldTransport struct {
	release chan struct{}
	calls   atomic.Int32
}

func (h *heldTransport) Send(ctx context.Context, _ quote.TransportRequest, _ time.Duration) ([]byte, error) {
	h.calls.Add(1)
	select {
	case <-h.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []byte(`{"data":{"routeSummary":{"amountOut":"2500000000","gasUsd":"3.2"}}}`), nil
}

func TestQuoteInflightCallerLeavesAlone(t *testing.T) {
	t.Parallel()

	// Arrange: two identical kyber requests sharing one held upstream call.
	ht := &heldTransport{release: make(chan struct{})}
	policy, err := dedup.New(dedup.ModeInflight, 0, 0, nil)
	require.NoError(t, err)
	router := newRouter(t, ht, engine.WithDedup(policy))

	gone, cancel := context.WithCancel(t.Context())
	first := make(chan error, 1)
	go func() {
		req := ethToUSDT("kyber")
		req.CorrelationID = "gone"
		_, err := router.Quote(gone, req, quote.Settings{})
		first <- err
	}()
	time.Sleep(50 * time.Millisecond)

	type answer struct {
		res *quote.Result
		err error
	}
	second := make(chan answer, 1)
	go func() {
		res, err := router.Quote(t.Context(), ethToUSDT("kyber"), quote.Settings{})
		second <- answer{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	// Act: the first caller disconnects before the upstream answers.
	cancel()
	err = <-first
	close(ht.release)

	// Assert: the first caller gets its own abort, the second its quote.
	qe, ok := quote.AsError(err)
	require.True(t, ok)
	require.Equal(t, quote.HTTPError, qe.Classification)
	require.Equal(t, "abort", qe.TransportToken)
	require.Equal(t, "KYBER", qe.ProviderLabel)
	require.Equal(t, "gone", qe.CorrelationID)

	got := <-second
	require.NoError(t, got.err)
	require.Equal(t, "row-1", got.res.CorrelationID)
	require.Equal(t, "2500", got.res.AmountOut.String())
	require.EqualValues(t, 1, ht.calls.Load())
}

func TestProviders(t *testing.T) {
	t.Parallel()

	router := newRouter(t, &routedTransport{})

	got := router.Providers()

	require.Len(t, got, 3)
	require.Equal(t, "kyber", got[0].Name)
	require.Equal(t, "KYBER", got[0].Label)
	require.True(t, got[0].FallbackAllowed)
	require.Equal(t, "odos", got[1].Name)
	require.Equal(t, "magpie", got[2].Name)
	require.True(t, got[2].FallbackOnly)
}
