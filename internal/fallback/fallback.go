package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"dexquote/internal/executor"
	"dexquote/internal/metrics"
	"dexquote/internal/quote"
)

const (
	// DefaultEndpoint is the hosted aggregation relay.
	DefaultEndpoint = "https://bzvwrjfhuefn.up.railway.app/swap"
	// DefaultSlippageBps is sent when no slippage is configured.
	DefaultSlippageBps = "100"
	// Label prefixes every fallback failure message.
	Label = "FALLBACK"
)

// ErrInvalidResponse is returned when the relay answers without an output
// amount.
var ErrInvalidResponse = errors.New("fallback response invalid")

// Executor quotes any provider slug through the aggregation relay.
type Executor struct {
	// endpoint is the relay URL.
	endpoint string
	// slippageBps is sent verbatim as a string.
	slippageBps string
	transport   quote.Transport
	fees        quote.FeeTable
	logger      *zap.Logger
	metrics     *metrics.QuoteMetrics
}

// Option is a configuration option for the fallback executor.
type Option func(*Executor)

// WithEndpoint sets the relay URL.
func WithEndpoint(endpoint string) Option {
	return func(e *Executor) {
		if endpoint != "" {
			e.endpoint = endpoint
		}
	}
}

// WithSlippageBps sets the slippage sent to the relay.
func WithSlippageBps(bps string) Option {
	return func(e *Executor) {
		if bps != "" {
			e.slippageBps = bps
		}
	}
}

// WithFees sets the static per-chain fee table.
func WithFees(fees quote.FeeTable) Option {
	return func(e *Executor) {
		e.fees = fees
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.QuoteMetrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// New creates a fallback executor.
func New(transport quote.Transport, options ...Option) *Executor {
	e := &Executor{
		endpoint:    DefaultEndpoint,
		slippageBps: DefaultSlippageBps,
		transport:   transport,
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

type token struct {
	ChainID  int    `json:"chainId"`
	Type     string `json:"type"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// Payload is the provider-agnostic relay request.
type Payload struct {
	ChainID        int     `json:"chainId"`
	AggregatorSlug string  `json:"aggregatorSlug"`
	Sender         string  `json:"sender,omitempty"`
	InToken        token   `json:"inToken"`
	OutToken       token   `json:"outToken"`
	AmountInWei    string  `json:"amountInWei"`
	SlippageBps    string  `json:"slippageBps"`
	GasPriceGwei   float64 `json:"gasPriceGwei"`
}

type response struct {
	AmountOutWei json.RawMessage `json:"amountOutWei"`
}

// Quote resolves exactly once, with a result or a *quote.Error.
func (e *Executor) Quote(ctx context.Context, req quote.Request, settings quote.Settings) (*quote.Result, error) {
	start := time.Now()
	slug := strings.ToLower(strings.TrimSpace(req.Provider))
	label := strings.ToUpper(slug)

	if err := req.Validate(); err != nil {
		return nil, e.fail(slug, start, req, executor.BuildFailure(label, err))
	}
	if slug == "" {
		return nil, e.fail(slug, start, req, executor.BuildFailure(label, errors.New("aggregator slug is required")))
	}

	aux := quote.NewAux(req, settings, nil, e.fees.For(req.Chain.ID))
	tr, err := e.buildRequest(slug, req, aux, settings)
	if err != nil {
		return nil, e.fail(slug, start, req, executor.BuildFailure(label, err))
	}

	body, err := executor.SendWithin(ctx, e.transport, tr, settings.Timeout())
	if err != nil {
		qe := executor.TransportFailure(Label, err)
		qe.ProviderLabel = label
		return nil, e.fail(slug, start, req, qe)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, e.fail(slug, start, req, e.invalid(label, err))
	}
	raw, ok := quote.ParseDecimal(resp.AmountOutWei)
	if !ok {
		return nil, e.fail(slug, start, req, e.invalid(label, nil))
	}

	res := &quote.Result{
		Provider:       slug,
		ProviderLabel:  label,
		AmountOut:      quote.FromMinorUnits(raw, req.Dest.Decimals),
		FeeEstimateUSD: aux.FallbackFee,
		SourceURL:      e.endpoint,
		CorrelationID:  req.CorrelationID,
		Route:          quote.RouteFallback,
	}
	elapsed := time.Since(start)
	e.metrics.Observe(slug, string(quote.RouteFallback), metrics.OutcomeSuccess, elapsed)
	e.logger.Debug("fallback quote resolved",
		zap.String("provider", slug),
		zap.String("amount_out", res.AmountOut.String()),
		zap.String("correlation_id", req.CorrelationID),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}

func (e *Executor) buildRequest(slug string, req quote.Request, aux quote.Aux, settings quote.Settings) (quote.TransportRequest, error) {
	payload := Payload{
		ChainID:        req.Chain.ID,
		AggregatorSlug: slug,
		Sender:         aux.Wallet,
		InToken: token{
			ChainID:  req.Chain.ID,
			Type:     "TOKEN",
			Address:  strings.ToLower(req.Source.Address),
			Decimals: req.Source.Decimals,
		},
		OutToken: token{
			ChainID:  req.Chain.ID,
			Type:     "TOKEN",
			Address:  strings.ToLower(req.Dest.Address),
			Decimals: req.Dest.Decimals,
		},
		AmountInWei:  aux.AmountIn.String(),
		SlippageBps:  e.slippageBps,
		GasPriceGwei: settings.GasPriceGwei,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return quote.TransportRequest{}, err
	}
	return quote.TransportRequest{
		URL:     e.endpoint,
		Method:  "POST",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    b,
	}, nil
}

func (e *Executor) invalid(label string, cause error) *quote.Error {
	err := ErrInvalidResponse
	if cause != nil {
		err = errors.Join(ErrInvalidResponse, cause)
	}
	return &quote.Error{
		StatusCode:     200,
		Classification: quote.ParseError,
		Message:        Label + ": " + ErrInvalidResponse.Error(),
		ProviderLabel:  label,
		Err:            err,
	}
}

func (e *Executor) fail(slug string, start time.Time, req quote.Request, qe *quote.Error) error {
	qe.CorrelationID = req.CorrelationID
	elapsed := time.Since(start)
	e.metrics.Observe(slug, string(quote.RouteFallback), string(qe.Classification), elapsed)
	e.logger.Warn("fallback quote failed",
		zap.String("provider", slug),
		zap.String("classification", string(qe.Classification)),
		zap.Int("status", qe.StatusCode),
		zap.String("message", qe.Message),
		zap.String("body", qe.Body),
		zap.String("correlation_id", req.CorrelationID),
		zap.Error(qe.Err),
	)
	return qe
}
