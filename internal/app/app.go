// Package app wires the quote engine from configuration for the binaries.
package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dexquote/internal/config"
	"dexquote/internal/dedup"
	"dexquote/internal/engine"
	"dexquote/internal/executor"
	"dexquote/internal/fallback"
	"dexquote/internal/httpx"
	"dexquote/internal/metrics"
	"dexquote/internal/provider/builtin"
	"dexquote/internal/provider/ratelimit"
	"dexquote/internal/quote"
	"dexquote/internal/registry"
	"dexquote/internal/signer"
)

// App is a wired engine.
type App struct {
	Router   *engine.Router
	Settings quote.Settings
	Metrics  *prometheus.Registry
	Logger   *zap.Logger
}

// NewLogger builds a zap logger from the log section. Format "console"
// gives the development encoder; anything else is JSON.
func NewLogger(c config.Log) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(c.Level))); err != nil {
			return nil, fmt.Errorf("log level %q: %w", c.Level, err)
		}
	}
	var zc zap.Config
	if strings.EqualFold(c.Format, "console") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Option overrides a wired dependency.
type Option func(*options)

type options struct {
	transport quote.Transport
}

// WithTransport replaces the HTTP transport, mostly for tests.
func WithTransport(t quote.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// Build wires the registry, rate gates, signer, executors, dedup policy and
// router from cfg.
func Build(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	}

	reg := registry.New()
	fallbackOnly, err := registry.Seed(reg, cfg.Entries(), builtin.Strategies())
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	m := metrics.NewQuoteMetrics(promReg)
	fees := cfg.FeeTable()

	execOpts := []executor.Option{
		executor.WithFees(fees),
		executor.WithProxyPrefix(cfg.Proxy.Prefix),
		executor.WithGates(ratelimit.New(cfg.Limits())),
		executor.WithLogger(logger.Named("executor")),
		executor.WithMetrics(m),
	}
	pool, err := signer.NewPool(cfg.OKX.Credentials)
	switch {
	case err == nil:
		execOpts = append(execOpts, executor.WithSigner(pool))
		logger.Info("okx signer ready", zap.Int("credentials", pool.Size()))
	case errors.Is(err, signer.ErrEmptyPool):
		logger.Warn("no okx credentials configured; okx quotes will fail to build")
	default:
		return nil, err
	}
	exec := executor.New(reg, o.transport, execOpts...)

	policy, err := dedup.New(dedup.Mode(strings.ToLower(cfg.Dedup.Mode)), cfg.DedupTTL(), cfg.Dedup.MaxItems, m)
	if err != nil {
		return nil, err
	}

	routerOpts := []engine.Option{
		engine.WithFallbackOnly(fallbackOnly),
		engine.WithFallbackOnFailure(cfg.Fallback.OnFailure),
		engine.WithDedup(policy),
		engine.WithLogger(logger.Named("router")),
	}
	if cfg.Fallback.Enabled {
		routerOpts = append(routerOpts, engine.WithFallback(fallback.New(o.transport,
			fallback.WithEndpoint(cfg.Fallback.Endpoint),
			fallback.WithSlippageBps(cfg.Fallback.SlippageBps),
			fallback.WithFees(fees),
			fallback.WithLogger(logger.Named("fallback")),
			fallback.WithMetrics(m),
		)))
	}

	logger.Info("quote engine ready",
		zap.Strings("providers", reg.List()),
		zap.Strings("fallback_only", fallbackOnly),
		zap.String("dedup", string(policy.Mode())),
		zap.Bool("fallback", cfg.Fallback.Enabled),
	)
	return &App{
		Router:   engine.New(exec, routerOpts...),
		Settings: cfg.QuoteSettings(),
		Metrics:  promReg,
		Logger:   logger,
	}, nil
}
