// Package executor runs a single quote call against a registered provider:
// resolve, build, proxy rewrite, send with timeout, normalize.
//
// Execute resolves exactly once per call and never retries. Retry policy
// belongs to the caller.
package executor

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"dexquote/internal/metrics"
	"dexquote/internal/provider"
	"dexquote/internal/provider/ratelimit"
	"dexquote/internal/quote"
	"dexquote/internal/registry"
)

// Executor is safe for concurrent use.
type Executor struct {
	registry    *registry.Registry
	transport   quote.Transport
	signer      quote.Signer
	fees        quote.FeeTable
	proxyPrefix string
	gates       *ratelimit.Gates
	logger      *zap.Logger
	metrics     *metrics.QuoteMetrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithSigner sets the signer handed to authenticated providers.
func WithSigner(s quote.Signer) Option {
	return func(e *Executor) {
		e.signer = s
	}
}

// WithFees sets the static per-chain fee table.
func WithFees(fees quote.FeeTable) Option {
	return func(e *Executor) {
		e.fees = fees
	}
}

// WithProxyPrefix sets the relay prefix used by proxy-enabled providers.
func WithProxyPrefix(prefix string) Option {
	return func(e *Executor) {
		e.proxyPrefix = prefix
	}
}

// WithGates sets per-provider rate gates.
func WithGates(g *ratelimit.Gates) Option {
	return func(e *Executor) {
		e.gates = g
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m *metrics.QuoteMetrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

func New(reg *registry.Registry, transport quote.Transport, options ...Option) *Executor {
	e := &Executor{
		registry:  reg,
		transport: transport,
		logger:    zap.NewNop(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Registry returns the registry the executor resolves against.
func (e *Executor) Registry() *registry.Registry { return e.registry }

// Execute quotes req on providerName. The error, when not nil, is always a
// *quote.Error.
func (e *Executor) Execute(ctx context.Context, providerName string, req quote.Request, settings quote.Settings) (*quote.Result, error) {
	start := time.Now()
	key := strings.ToLower(strings.TrimSpace(providerName))

	d, ok := e.registry.Resolve(key)
	if !ok {
		return nil, e.fail(key, start, req, quote.Unsupported(strings.ToUpper(key), providerName))
	}
	label := d.Strategy.Label()

	if err := req.Validate(); err != nil {
		return nil, e.fail(key, start, req, BuildFailure(label, err))
	}
	aux := quote.NewAux(req, settings, e.signer, e.fees.For(req.Chain.ID))
	tr, err := d.Strategy.BuildRequest(req, aux)
	if err != nil {
		return nil, e.fail(key, start, req, BuildFailure(label, err))
	}

	sourceURL := tr.URL
	if d.ProxyEnabled {
		tr.URL = ApplyProxy(tr.URL, e.proxyPrefix)
	}

	timeout := settings.Timeout()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := e.gates.Wait(callCtx, d.Key); err != nil {
		qe := TransportFailure(label, contextFailure(callCtx))
		qe.DeepLink = provider.DeepLink(d.Strategy, req)
		return nil, e.fail(key, start, req, qe)
	}

	body, err := SendWithin(callCtx, e.transport, tr, timeout)
	if err != nil {
		qe := TransportFailure(label, err)
		qe.DeepLink = provider.DeepLink(d.Strategy, req)
		return nil, e.fail(key, start, req, qe)
	}

	res, err := d.Strategy.ParseResponse(body, req, aux)
	if err != nil {
		return nil, e.fail(key, start, req, ParseFailure(label, err))
	}
	res.Provider = key
	res.ProviderLabel = label
	res.SourceURL = sourceURL
	res.CorrelationID = req.CorrelationID
	res.Route = quote.RouteDirect

	elapsed := time.Since(start)
	e.metrics.Observe(key, string(quote.RouteDirect), metrics.OutcomeSuccess, elapsed)
	e.logger.Debug("quote resolved",
		zap.String("provider", key),
		zap.String("amount_out", res.AmountOut.String()),
		zap.String("correlation_id", req.CorrelationID),
		zap.Duration("duration", elapsed),
	)
	return &res, nil
}

func (e *Executor) fail(key string, start time.Time, req quote.Request, qe *quote.Error) error {
	qe.CorrelationID = req.CorrelationID
	elapsed := time.Since(start)
	e.metrics.Observe(key, string(quote.RouteDirect), string(qe.Classification), elapsed)
	e.logger.Warn("quote failed",
		zap.String("provider", key),
		zap.String("classification", string(qe.Classification)),
		zap.Int("status", qe.StatusCode),
		zap.String("message", qe.Message),
		zap.String("body", qe.Body),
		zap.String("correlation_id", req.CorrelationID),
		zap.Duration("duration", elapsed),
		zap.Error(qe.Err),
	)
	return qe
}
