package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"

	"dexquote/internal/fallback"
	"dexquote/internal/provider/ratelimit"
	"dexquote/internal/quote"
	"dexquote/internal/registry"
	"dexquote/internal/signer"
)

type Server struct {
	Port              string `json:"port" yaml:"port" env:"DEXQUOTE_PORT"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec" env:"DEXQUOTE_REQUEST_TIMEOUT_SEC"`
	MaxProviders      int    `json:"max_providers" yaml:"max_providers" env:"DEXQUOTE_MAX_PROVIDERS"`
}

type Log struct {
	Level  string `json:"level" yaml:"level" env:"DEXQUOTE_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"DEXQUOTE_LOG_FORMAT"`
}

// Settings mirrors quote.Settings.
type Settings struct {
	ScanSpeedSec float64 `json:"scan_speed_sec" yaml:"scan_speed_sec" env:"DEXQUOTE_SCAN_SPEED_SEC"`
	Wallet       string  `json:"wallet" yaml:"wallet" env:"DEXQUOTE_WALLET"`
	GasPriceGwei float64 `json:"gas_price_gwei" yaml:"gas_price_gwei" env:"DEXQUOTE_GAS_PRICE_GWEI"`
}

type Proxy struct {
	Prefix string `json:"prefix" yaml:"prefix" env:"DEXQUOTE_PROXY_PREFIX"`
}

type Fallback struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" env:"DEXQUOTE_FALLBACK_ENABLED"`
	Endpoint    string `json:"endpoint" yaml:"endpoint" env:"DEXQUOTE_FALLBACK_ENDPOINT"`
	SlippageBps string `json:"slippage_bps" yaml:"slippage_bps" env:"DEXQUOTE_FALLBACK_SLIPPAGE_BPS"`
	OnFailure   bool   `json:"on_failure" yaml:"on_failure" env:"DEXQUOTE_FALLBACK_ON_FAILURE"`
}

type Dedup struct {
	Mode     string `json:"mode" yaml:"mode" env:"DEXQUOTE_DEDUP_MODE"`
	TTLSec   int    `json:"ttl_sec" yaml:"ttl_sec" env:"DEXQUOTE_DEDUP_TTL_SEC"`
	MaxItems int    `json:"max_items" yaml:"max_items" env:"DEXQUOTE_DEDUP_MAX_ITEMS"`
}

type Scan struct {
	Workers int `json:"workers" yaml:"workers" env:"DEXQUOTE_SCAN_WORKERS"`
	// MaxPairsPerMinute paces the scanner; 0 means unpaced.
	MaxPairsPerMinute int `json:"max_pairs_per_minute" yaml:"max_pairs_per_minute" env:"DEXQUOTE_SCAN_MAX_PPM"`
}

// Provider is one row of the bootstrap table. A row with neither strategy
// nor alias_of is reachable only through the fallback relay.
type Provider struct {
	Name                  string  `json:"name" yaml:"name"`
	Strategy              string  `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	AliasOf               string  `json:"alias_of,omitempty" yaml:"alias_of,omitempty"`
	Proxy                 bool    `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	AllowFallback         bool    `json:"allow_fallback,omitempty" yaml:"allow_fallback,omitempty"`
	MaxRequestsPerMinute  int     `json:"max_requests_per_minute,omitempty" yaml:"max_requests_per_minute,omitempty"`
	Burst                 int     `json:"burst,omitempty" yaml:"burst,omitempty"`
	MinRequestIntervalSec float64 `json:"min_request_interval_sec,omitempty" yaml:"min_request_interval_sec,omitempty"`
}

type OKX struct {
	Credentials []signer.Credentials `json:"credentials" yaml:"credentials"`
	// CredentialsEnv replaces Credentials when set ("key:secret:pass,...").
	CredentialsEnv string `json:"-" yaml:"-" env:"DEXQUOTE_OKX_CREDENTIALS"`
}

type Config struct {
	Server    Server          `json:"server" yaml:"server"`
	Log       Log             `json:"log" yaml:"log"`
	Settings  Settings        `json:"settings" yaml:"settings"`
	Proxy     Proxy           `json:"proxy" yaml:"proxy"`
	Fallback  Fallback        `json:"fallback" yaml:"fallback"`
	Dedup     Dedup           `json:"dedup" yaml:"dedup"`
	Scan      Scan            `json:"scan" yaml:"scan"`
	Providers []Provider      `json:"providers" yaml:"providers"`
	Fees      map[int]float64 `json:"fees" yaml:"fees"`
	OKX       OKX             `json:"okx" yaml:"okx"`
}

func Default() Config {
	return Config{
		Server:   Server{Port: "8080", RequestTimeoutSec: 15, MaxProviders: 32},
		Log:      Log{Level: "info", Format: "json"},
		Settings: Settings{ScanSpeedSec: quote.DefaultScanSpeedSeconds},
		Fallback: Fallback{Enabled: true, Endpoint: fallback.DefaultEndpoint, SlippageBps: fallback.DefaultSlippageBps},
		Dedup:    Dedup{Mode: "off", TTLSec: 3, MaxItems: 10000},
		Scan:     Scan{Workers: 4},
		Fees: map[int]float64{
			1:     3.0,
			56:    0.10,
			137:   0.02,
			42161: 0.05,
			8453:  0.03,
			43114: 0.05,
			501:   0.002,
		},
	}
}

// DefaultProviders is the built-in bootstrap table.
func DefaultProviders() []Provider {
	return []Provider{
		{Name: "kyber", Strategy: "kyber", AllowFallback: true},
		{Name: "kyberswap", AliasOf: "kyber"},
		{Name: "1inch", Strategy: "1inch", AllowFallback: true},
		{Name: "lifi", AliasOf: "1inch"},
		{Name: "odos", Strategy: "odos", AllowFallback: true, MaxRequestsPerMinute: 120, Burst: 4},
		{Name: "0x", Strategy: "0x", Proxy: true, AllowFallback: true, MaxRequestsPerMinute: 60, Burst: 2},
		{Name: "okx", Strategy: "okx", AllowFallback: true, MinRequestIntervalSec: 0.5},
		{Name: "magpie", AllowFallback: true},
		{Name: "paraswap", AllowFallback: true},
		{Name: "bebop", AllowFallback: true},
	}
}

// Load reads JSON or YAML config from path. If path is empty, config.json
// then config.yaml in the working directory are tried. Environment
// variables override file values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	readEnvOnly := path == ""
	if !readEnvOnly {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			readEnvOnly = true
		}
	}
	if readEnvOnly {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}
	if cfg.OKX.CredentialsEnv != "" {
		cfg.OKX.Credentials = signer.ParseCredentials(cfg.OKX.CredentialsEnv)
	}
	return cfg, cfg.Validate()
}

// Validate rejects tables the registry could not seed.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("providers[%d]: duplicate provider %q", i, name)
		}
		seen[name] = true
		if p.Strategy != "" && p.AliasOf != "" {
			return fmt.Errorf("provider %q: strategy and alias_of are exclusive", name)
		}
	}
	if c.Settings.ScanSpeedSec < 0 {
		return fmt.Errorf("settings.scan_speed_sec must not be negative")
	}
	return nil
}

// QuoteSettings is the per-call settings snapshot.
func (c Config) QuoteSettings() quote.Settings {
	return quote.Settings{
		ScanSpeedSeconds: c.Settings.ScanSpeedSec,
		Wallet:           c.Settings.Wallet,
		GasPriceGwei:     c.Settings.GasPriceGwei,
	}
}

// Entries converts the provider table for registry.Seed.
func (c Config) Entries() []registry.Entry {
	out := make([]registry.Entry, 0, len(c.Providers))
	for _, p := range c.Providers {
		out = append(out, registry.Entry{
			Name:          p.Name,
			Strategy:      p.Strategy,
			Proxy:         p.Proxy,
			AllowFallback: p.AllowFallback,
			AliasOf:       p.AliasOf,
		})
	}
	return out
}

// Limits returns the rate gate of every provider that configures one.
func (c Config) Limits() map[string]ratelimit.Limits {
	out := make(map[string]ratelimit.Limits)
	for _, p := range c.Providers {
		if p.MaxRequestsPerMinute <= 0 && p.MinRequestIntervalSec <= 0 {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(p.Name))] = ratelimit.Limits{
			MaxRequestsPerMinute: p.MaxRequestsPerMinute,
			Burst:                p.Burst,
			MinInterval:          time.Duration(p.MinRequestIntervalSec * float64(time.Second)),
		}
	}
	return out
}

// FeeTable converts the configured USD fee fallbacks.
func (c Config) FeeTable() quote.FeeTable {
	out := make(quote.FeeTable, len(c.Fees))
	for chain, usd := range c.Fees {
		out[chain] = decimal.NewFromFloat(usd)
	}
	return out
}

// DedupTTL is the memo lifetime for the ttl mode.
func (c Config) DedupTTL() time.Duration {
	return time.Duration(c.Dedup.TTLSec) * time.Second
}
